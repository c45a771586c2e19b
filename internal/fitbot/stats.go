package fitbot

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/chart"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// DailyValue is one day of a Fitbit activity time series
type DailyValue struct {
	Date  time.Time
	Value float64
}

type seriesEntry struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

// timeSeries fetches the trailing seven days of an activity resource
func (s *Service) timeSeries(ctx context.Context, accessToken, resource string) ([]DailyValue, error) {
	endpoint := fmt.Sprintf("%s/activities/%s/date/today/7d.json", s.apiBaseURL, resource)
	headers := http.Header{"Authorization": []string{"Bearer " + accessToken}}

	var resp map[string][]seriesEntry
	if err := s.http.GetJSON(ctx, endpoint, nil, headers, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", resource, err)
	}

	entries, ok := resp["activities-"+resource]
	if !ok {
		return nil, fmt.Errorf("response for %s is missing activities-%s", resource, resource)
	}

	values := make([]DailyValue, 0, len(entries))
	for _, e := range entries {
		date, err := time.Parse("2006-01-02", e.DateTime)
		if err != nil {
			return nil, fmt.Errorf("invalid %s date %q: %w", resource, e.DateTime, err)
		}
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", resource, e.Value, err)
		}
		values = append(values, DailyValue{Date: date, Value: v})
	}

	return values, nil
}

// UserWeeklyStats is one user's trailing week of activity
type UserWeeklyStats struct {
	UserID       string
	FairlyActive []DailyValue
	VeryActive   []DailyValue
	Steps        []DailyValue
	Distance     []DailyValue
}

func total(values []DailyValue) float64 {
	var sum float64
	for _, v := range values {
		sum += v.Value
	}
	return sum
}

// TotalSteps sums the week's steps
func (u *UserWeeklyStats) TotalSteps() int {
	return int(total(u.Steps))
}

// TotalDistance sums the week's distance in the user's Fitbit units
func (u *UserWeeklyStats) TotalDistance() float64 {
	return total(u.Distance)
}

// TotalActiveMinutes is fairly active plus very active minutes, following
// Fitbit's definition of active minutes.
func (u *UserWeeklyStats) TotalActiveMinutes() int {
	return int(total(u.FairlyActive) + total(u.VeryActive))
}

// LastDaySteps is yesterday's step count. The final entry is today, which
// is still in progress.
func (u *UserWeeklyStats) LastDaySteps() int {
	switch n := len(u.Steps); {
	case n >= 2:
		return int(u.Steps[n-2].Value)
	case n == 1:
		return int(u.Steps[0].Value)
	default:
		return 0
	}
}

// Metric selects what a leaderboard ranks by
type Metric int

const (
	MetricActiveMinutes Metric = iota
	MetricWeeklySteps
	MetricLastDaySteps
)

func (m Metric) String() string {
	switch m {
	case MetricActiveMinutes:
		return "Weekly active minutes"
	case MetricWeeklySteps:
		return "Weekly steps"
	case MetricLastDaySteps:
		return "Yesterday's steps"
	default:
		return "Unknown"
	}
}

func (m Metric) score(u *UserWeeklyStats) int {
	switch m {
	case MetricWeeklySteps:
		return u.TotalSteps()
	case MetricLastDaySteps:
		return u.LastDaySteps()
	default:
		return u.TotalActiveMinutes()
	}
}

// LeaderboardEntry is one user's score for a metric
type LeaderboardEntry struct {
	UserID string
	Score  int
}

// GuildWeeklyStats collects the week for every registered user in a guild
type GuildWeeklyStats struct {
	Users       []*UserWeeklyStats
	Unavailable []string
}

// Leaderboard ranks users by metric, highest first, user id breaking ties
func (g *GuildWeeklyStats) Leaderboard(m Metric) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(g.Users))
	for _, u := range g.Users {
		entries = append(entries, LeaderboardEntry{UserID: u.UserID, Score: m.score(u)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

func labelOrID(label func(string) string, userID string) string {
	if label == nil {
		return userID
	}
	if name := label(userID); name != "" {
		return name
	}
	return userID
}

// LeaderboardText renders a leaderboard as a table under the metric name
func LeaderboardText(m Metric, entries []LeaderboardEntry, label func(string) string) string {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			labelOrID(label, e.UserID),
			render.Number(int64(e.Score)),
		})
	}
	return "**" + m.String() + "**\n" + render.CodeBlock(render.Table([]string{"#", "User", "Score"}, rows, 1, 3))
}

// StepsChartPNG plots each user's daily steps
func (g *GuildWeeklyStats) StepsChartPNG(label func(string) string) ([]byte, error) {
	series := make([]chart.Series, 0, len(g.Users))
	for _, u := range g.Users {
		s := chart.Series{
			Name:   labelOrID(label, u.UserID),
			Times:  make([]time.Time, 0, len(u.Steps)),
			Values: make([]float64, 0, len(u.Steps)),
		}
		for _, v := range u.Steps {
			s.Times = append(s.Times, v.Date)
			s.Values = append(s.Values, v.Value)
		}
		series = append(series, s)
	}

	return chart.LinePNG(series, chart.Options{
		Title:    "Daily steps",
		DateOnly: true,
		YFormat:  "%.0f",
	})
}

// Fields summarises one user's week
func Fields(u *UserWeeklyStats) []render.Field {
	return []render.Field{
		{Name: "Active Minutes", Value: render.Number(int64(u.TotalActiveMinutes())), Inline: true},
		{Name: "Fairly Active", Value: render.Number(int64(total(u.FairlyActive))), Inline: true},
		{Name: "Very Active", Value: render.Number(int64(total(u.VeryActive))), Inline: true},
		{Name: "Steps", Value: render.Number(int64(u.TotalSteps())), Inline: true},
		{Name: "Yesterday's Steps", Value: render.Number(int64(u.LastDaySteps())), Inline: true},
		{Name: "Distance", Value: render.Decimal(u.TotalDistance(), 2), Inline: true},
	}
}
