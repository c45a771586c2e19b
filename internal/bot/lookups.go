package bot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/weastcoast/weastcoastbot/internal/chart"
	"github.com/weastcoast/weastcoastbot/internal/coingecko"
	"github.com/weastcoast/weastcoastbot/internal/omdb"
	"github.com/weastcoast/weastcoastbot/internal/stonk"
)

func changeColor(up bool) int {
	if up {
		return colorGreen
	}
	return colorRed
}

func (h *Handlers) crypto(ctx context.Context, inv *Invocation) (*Response, error) {
	id, err := h.services.Crypto.LookupCoinID(ctx, inv.String("coin"))
	if err != nil {
		return nil, err
	}

	var (
		coin    *coingecko.Coin
		history []coingecko.PricePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		coin, err = h.services.Crypto.Coin(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		// The summary is still useful without the chart
		if history, err = h.services.Crypto.PriceHistory(gctx, id); err != nil {
			h.logger.Warn("Failed to load price history", zap.String("coin", id), zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:  coin.Name,
		URL:    coin.HomePage,
		Color:  changeColor(coin.Market == nil || coin.Market.PriceChange24h >= 0),
		Fields: embedFields(coingecko.Fields(coin)),
	}
	if coin.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: coin.ImageURL}
	}
	resp := embedResponse(embed)

	if len(history) > 0 {
		series := chart.Series{
			Name:   strings.ToUpper(coin.Symbol),
			Times:  make([]time.Time, 0, len(history)),
			Values: make([]float64, 0, len(history)),
		}
		for _, p := range history {
			series.Times = append(series.Times, p.Time)
			series.Values = append(series.Values, p.Price)
		}
		png, err := chart.LinePNG([]chart.Series{series}, chart.Options{
			Title:   coin.Name + " - last 24 hours",
			YFormat: "$%.2f",
		})
		if err != nil {
			h.logger.Warn("Failed to render price chart", zap.String("coin", id), zap.Error(err))
		} else {
			resp.attachChart(embed, png)
		}
	}

	return resp, nil
}

func (h *Handlers) stonk(ctx context.Context, inv *Invocation) (*Response, error) {
	period := inv.String("period")
	if period == "" {
		period = stonk.DefaultPeriod
	}
	interval := inv.String("interval")
	if interval == "" {
		interval = stonk.DefaultInterval
	}

	s, err := h.services.Stocks.Stock(ctx, inv.String("ticker"), period, interval)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:       stonk.Title(s),
		URL:         s.Link(),
		Description: s.Exchange,
		Color:       changeColor(s.Up()),
		Fields:      embedFields(stonk.Fields(s, h.services.Location)),
	}
	resp := embedResponse(embed)
	if len(s.Points) == 0 {
		return resp, nil
	}

	series := chart.Series{
		Name:   s.Symbol,
		Times:  make([]time.Time, 0, len(s.Points)),
		Values: make([]float64, 0, len(s.Points)),
	}
	for _, p := range s.Points {
		series.Times = append(series.Times, p.Time.In(h.services.Location))
		series.Values = append(series.Values, p.Price)
	}
	png, err := chart.LinePNG([]chart.Series{series}, chart.Options{
		Title:    s.Symbol + " - " + period,
		DateOnly: period != "1d",
		YFormat:  "$%.2f",
	})
	if err != nil {
		h.logger.Warn("Failed to render stock chart", zap.String("ticker", s.Symbol), zap.Error(err))
		return resp, nil
	}
	resp.attachChart(embed, png)

	return resp, nil
}

func (h *Handlers) imdb(ctx context.Context, inv *Invocation) (*Response, error) {
	year, _ := inv.Int("year")
	film, err := h.services.Films.Find(ctx, omdb.Query{
		Title:  strings.TrimSpace(inv.String("title")),
		IMDbID: strings.TrimSpace(inv.String("imdb_id")),
		Year:   int(year),
	})
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title:       film.Title,
		URL:         film.URL(),
		Description: film.Plot,
		Fields:      embedFields(omdb.Fields(film)),
	}
	if poster := film.PosterURL(); poster != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: poster}
	}

	return embedResponse(embed), nil
}

func (h *Handlers) wiki(ctx context.Context, inv *Invocation) (*Response, error) {
	link, err := h.services.Wiki.Search(ctx, inv.String("search"))
	if err != nil {
		return nil, err
	}
	return textResponse(link), nil
}
