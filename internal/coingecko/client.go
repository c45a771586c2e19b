// Package coingecko looks up coin prices on the CoinGecko public API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/cache"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// BaseURL is the CoinGecko v3 API root
const BaseURL = "https://api.coingecko.com/api/v3"

const currency = "usd"

// CoinRef is an entry of the coin list
type CoinRef struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketData is the 24 hour summary in USD
type MarketData struct {
	CurrentPrice      float64
	High24h           float64
	Low24h            float64
	PriceChange24h    float64
	PriceChangePct24h float64
	MarketCapRank     int
	TotalVolume       float64
}

// Coin is a coin with its market data
type Coin struct {
	ID       string
	Symbol   string
	Name     string
	HomePage string
	ImageURL string
	Market   *MarketData
}

// PricePoint is one sample of the price history
type PricePoint struct {
	Time  time.Time
	Price float64
}

// Client is a CoinGecko API client
type Client struct {
	http    *httpclient.Client
	cache   *cache.Manager
	baseURL string
}

// NewClient creates a client. An empty baseURL uses the public API; cm may be nil.
func NewClient(http *httpclient.Client, cm *cache.Manager, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{http: http, cache: cm, baseURL: strings.TrimRight(baseURL, "/")}
}

// CoinList returns every listed coin, cached
func (c *Client) CoinList(ctx context.Context) ([]CoinRef, error) {
	return cache.Fetch(ctx, c.cache, models.CacheTypeCoinList, "all", func(ctx context.Context) ([]CoinRef, error) {
		var coins []CoinRef
		if err := c.http.GetJSON(ctx, c.baseURL+"/coins/list", nil, nil, &coins); err != nil {
			return nil, fmt.Errorf("failed to list coins: %w", err)
		}
		return coins, nil
	})
}

// LookupCoinID resolves a coin id or ticker symbol to a coin id
func (c *Client) LookupCoinID(ctx context.Context, search string) (string, error) {
	coins, err := c.CoinList(ctx)
	if err != nil {
		return "", err
	}
	return resolveCoinID(coins, search)
}

func resolveCoinID(coins []CoinRef, search string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(search))

	bySymbol := ""
	for _, coin := range coins {
		if coin.ID == q {
			return coin.ID, nil
		}
		if strings.ToLower(coin.Symbol) == q {
			bySymbol = coin.ID
		}
	}
	if bySymbol != "" {
		return bySymbol, nil
	}
	return "", apperrors.NewNotFound("coin", "Could not find coin by name or symbol")
}

// Coin fetches a coin's profile and market data
func (c *Client) Coin(ctx context.Context, id string) (*Coin, error) {
	params := url.Values{
		"localization":   []string{"false"},
		"tickers":        []string{"false"},
		"market_data":    []string{"true"},
		"community_data": []string{"false"},
		"developer_data": []string{"false"},
		"sparkline":      []string{"false"},
	}

	var raw struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Links  struct {
			Homepage []string `json:"homepage"`
		} `json:"links"`
		Image struct {
			Large string `json:"large"`
		} `json:"image"`
		MarketData *struct {
			CurrentPrice                       map[string]float64 `json:"current_price"`
			High24h                            map[string]float64 `json:"high_24h"`
			Low24h                             map[string]float64 `json:"low_24h"`
			PriceChange24hInCurrency           map[string]float64 `json:"price_change_24h_in_currency"`
			PriceChangePercentage24hInCurrency map[string]float64 `json:"price_change_percentage_24h_in_currency"`
			MarketCapRank                      int                `json:"market_cap_rank"`
			TotalVolume                        map[string]float64 `json:"total_volume"`
		} `json:"market_data"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/coins/"+url.PathEscape(id), params, nil, &raw); err != nil {
		return nil, c.wrap(err, "failed to get coin")
	}

	coin := &Coin{
		ID:       raw.ID,
		Symbol:   raw.Symbol,
		Name:     raw.Name,
		ImageURL: raw.Image.Large,
	}
	for _, home := range raw.Links.Homepage {
		if home != "" {
			coin.HomePage = home
			break
		}
	}
	if md := raw.MarketData; md != nil {
		coin.Market = &MarketData{
			CurrentPrice:      md.CurrentPrice[currency],
			High24h:           md.High24h[currency],
			Low24h:            md.Low24h[currency],
			PriceChange24h:    md.PriceChange24hInCurrency[currency],
			PriceChangePct24h: md.PriceChangePercentage24hInCurrency[currency],
			MarketCapRank:     md.MarketCapRank,
			TotalVolume:       md.TotalVolume[currency],
		}
	}
	return coin, nil
}

// PriceHistory returns the last 24 hours of USD prices, oldest first
func (c *Client) PriceHistory(ctx context.Context, id string) ([]PricePoint, error) {
	params := url.Values{"vs_currency": []string{currency}, "days": []string{"1"}}

	var raw struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/coins/"+url.PathEscape(id)+"/market_chart", params, nil, &raw); err != nil {
		return nil, c.wrap(err, "failed to get price history")
	}

	points := make([]PricePoint, 0, len(raw.Prices))
	for _, p := range raw.Prices {
		points = append(points, PricePoint{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Price: p[1],
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func (c *Client) wrap(err error, msg string) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFound("coin", "Could not find coin")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Fields summarizes a coin's market data for display
func Fields(coin *Coin) []render.Field {
	if coin.Market == nil {
		return nil
	}
	m := coin.Market
	return []render.Field{
		{Name: "Price", Value: render.Price(m.CurrentPrice), Inline: true},
		{Name: "Percent Change", Value: render.Percent(m.PriceChangePct24h), Inline: true},
		{Name: "Absolute Change", Value: render.Price(m.PriceChange24h), Inline: true},
		{Name: "24 Hour High", Value: render.Price(m.High24h), Inline: true},
		{Name: "24 Hour Low", Value: render.Price(m.Low24h), Inline: true},
		{Name: "Volume", Value: render.Decimal(m.TotalVolume, 0), Inline: true},
		{Name: "Market Cap Rank", Value: render.Number(int64(m.MarketCapRank)), Inline: true},
	}
}
