// Package stonk summarizes stock price history from the Yahoo Finance chart API.
package stonk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// BaseURL is the Yahoo Finance chart API root
const BaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Defaults used when a command omits them
const (
	DefaultPeriod   = "1d"
	DefaultInterval = "30m"
)

// Periods are the accepted history ranges
var Periods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Intervals are the accepted sample spacings
var Intervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}

// PricePoint is one sample, priced at the midpoint of its high and low
type PricePoint struct {
	Time  time.Time
	Price float64
}

// Stock is a ticker's summary over the requested period
type Stock struct {
	Name            string
	Symbol          string
	Exchange        string
	Currency        string
	CurrentPrice    float64
	DayHigh         float64
	DayLow          float64
	High            float64
	Low             float64
	MarketChange    float64
	MarketChangePct float64
	Start           time.Time
	End             time.Time
	Points          []PricePoint
}

// Up reports whether the price rose over the period
func (s *Stock) Up() bool {
	return s.MarketChange > 0
}

// Link is the Yahoo Finance quote page
func (s *Stock) Link() string {
	return "https://finance.yahoo.com/quote/" + url.PathEscape(s.Symbol)
}

// Client is a Yahoo Finance chart client
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient creates a client. An empty baseURL uses the public API.
func NewClient(http *httpclient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// ValidateRange checks period and interval against the accepted values
func ValidateRange(period, interval string) error {
	if !contains(Periods, period) {
		return apperrors.NewValidation("invalid period %q, expected one of: %s", period, strings.Join(Periods, ", "))
	}
	if !contains(Intervals, interval) {
		return apperrors.NewValidation("invalid interval %q, expected one of: %s", interval, strings.Join(Intervals, ", "))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency             string  `json:"currency"`
				Symbol               string  `json:"symbol"`
				ExchangeName         string  `json:"fullExchangeName"`
				ShortName            string  `json:"shortName"`
				LongName             string  `json:"longName"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					Close []*float64 `json:"close"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type sample struct {
	t                      time.Time
	open, close, high, low float64
}

// Stock fetches ticker's history for period sampled every interval
func (c *Client) Stock(ctx context.Context, ticker, period, interval string) (*Stock, error) {
	ticker = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ticker), "$"))
	if ticker == "" {
		return nil, apperrors.NewValidation("a ticker is required")
	}
	if err := ValidateRange(period, interval); err != nil {
		return nil, err
	}

	params := url.Values{"range": []string{period}, "interval": []string{interval}}

	var resp chartResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/"+url.PathEscape(ticker), params, nil, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, apperrors.NewNotFound("stock", "Invalid Stock: "+ticker)
		}
		return nil, fmt.Errorf("failed to fetch stock chart: %w", err)
	}
	if resp.Chart.Error != nil || len(resp.Chart.Result) == 0 {
		return nil, apperrors.NewNotFound("stock", "Invalid Stock: "+ticker)
	}

	result := resp.Chart.Result[0]
	if result.Meta.RegularMarketPrice == 0 {
		return nil, apperrors.NewNotFound("stock", "Invalid Stock: "+ticker)
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("stock history could not be fetched for %s", ticker)
	}
	q := result.Indicators.Quote[0]

	var samples []sample
	for i, ts := range result.Timestamp {
		open, okO := at(q.Open, i)
		cls, okC := at(q.Close, i)
		high, okH := at(q.High, i)
		low, okL := at(q.Low, i)
		if !(okO && okC && okH && okL) {
			continue
		}
		samples = append(samples, sample{t: time.Unix(ts, 0).UTC(), open: open, close: cls, high: high, low: low})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("stock history could not be fetched for %s", ticker)
	}

	name := result.Meta.ShortName
	if name == "" {
		name = result.Meta.LongName
	}

	first, last := samples[0], samples[len(samples)-1]
	stock := &Stock{
		Name:         name,
		Symbol:       result.Meta.Symbol,
		Exchange:     result.Meta.ExchangeName,
		Currency:     result.Meta.Currency,
		CurrentPrice: result.Meta.RegularMarketPrice,
		DayHigh:      result.Meta.RegularMarketDayHigh,
		DayLow:       result.Meta.RegularMarketDayLow,
		High:         math.Inf(-1),
		Low:          math.Inf(1),
		MarketChange: last.close - first.open,
		Start:        first.t,
		End:          last.t,
		Points:       make([]PricePoint, 0, len(samples)),
	}
	if first.open != 0 {
		stock.MarketChangePct = (last.close - first.open) / first.open * 100
	}
	for _, s := range samples {
		stock.High = math.Max(stock.High, s.high)
		stock.Low = math.Min(stock.Low, s.low)
		stock.Points = append(stock.Points, PricePoint{Time: s.t, Price: (s.high + s.low) / 2})
	}
	return stock, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

// Title is "Name - $SYMBOL"
func Title(s *Stock) string {
	return fmt.Sprintf("%s - $%s", s.Name, s.Symbol)
}

// DateRange describes the period covered, collapsing same-day ranges
func DateRange(s *Stock, loc *time.Location) string {
	start, end := s.Start.In(loc), s.End.In(loc)
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s - %s", start.Format("2006-01-02, 03:04 PM"), end.Format("03:04 PM"))
	}
	return fmt.Sprintf("%s - %s", start.Format("2006-01-02, 15:04"), end.Format("2006-01-02, 15:04"))
}

// Fields summarizes the stock for display
func Fields(s *Stock, loc *time.Location) []render.Field {
	return []render.Field{
		{Name: "Market Price", Value: render.Money(s.CurrentPrice)},
		{Name: "Last Day Low", Value: render.Money(s.DayLow), Inline: true},
		{Name: "Last Day High", Value: render.Money(s.DayHigh), Inline: true},
		{Name: "Period Low", Value: render.Money(s.Low), Inline: true},
		{Name: "Period High", Value: render.Money(s.High), Inline: true},
		{Name: "Market Change", Value: render.Money(s.MarketChange)},
		{Name: "Percent Market Change", Value: render.Percent(s.MarketChangePct)},
		{Name: "When", Value: DateRange(s, loc)},
	}
}
