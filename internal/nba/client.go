// Package nba fetches teams and games from balldontlie and today's live
// scoreboard from the NBA CDN.
package nba

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

const (
	// BallDontLieBaseURL is the balldontlie v1 API root
	BallDontLieBaseURL = "https://api.balldontlie.io/v1"

	pageSize = 100
)

// Client is a balldontlie API client
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
}

// NewClient creates a balldontlie client. An empty baseURL uses the public API.
func NewClient(http *httpclient.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = BallDontLieBaseURL
	}
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type bdlTeam struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	FullName     string `json:"full_name"`
	Name         string `json:"name"`
}

func (t bdlTeam) toModel() models.Team {
	return models.Team(t)
}

type bdlGame struct {
	ID               int     `json:"id"`
	Date             string  `json:"date"`
	Season           int     `json:"season"`
	Status           string  `json:"status"`
	Period           int     `json:"period"`
	Time             string  `json:"time"`
	Postseason       bool    `json:"postseason"`
	HomeTeamScore    int     `json:"home_team_score"`
	VisitorTeamScore int     `json:"visitor_team_score"`
	HomeTeam         bdlTeam `json:"home_team"`
	VisitorTeam      bdlTeam `json:"visitor_team"`
}

func (g bdlGame) toModel() (models.Game, error) {
	date, err := parseSlateDate(g.Date)
	if err != nil {
		return models.Game{}, fmt.Errorf("game %d: %w", g.ID, err)
	}
	return models.Game{
		ID:               g.ID,
		Date:             date,
		Season:           g.Season,
		Status:           g.Status,
		Period:           g.Period,
		Clock:            g.Time,
		Postseason:       g.Postseason,
		HomeTeamID:       g.HomeTeam.ID,
		VisitorTeamID:    g.VisitorTeam.ID,
		HomeTeamAbbr:     g.HomeTeam.Abbreviation,
		VisitorTeamAbbr:  g.VisitorTeam.Abbreviation,
		HomeTeamScore:    g.HomeTeamScore,
		VisitorTeamScore: g.VisitorTeamScore,
	}, nil
}

type bdlMeta struct {
	NextCursor *int `json:"next_cursor"`
	PerPage    int  `json:"per_page"`
}

// Teams lists every NBA team
func (c *Client) Teams(ctx context.Context) ([]models.Team, error) {
	var page struct {
		Data []bdlTeam `json:"data"`
	}
	if err := c.get(ctx, "/teams", nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	teams := make([]models.Team, 0, len(page.Data))
	for _, t := range page.Data {
		teams = append(teams, t.toModel())
	}
	return teams, nil
}

// Games lists every game dated between start and end inclusive, following
// the cursor until the last page.
func (c *Client) Games(ctx context.Context, start, end time.Time) ([]models.Game, error) {
	params := url.Values{}
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("per_page", strconv.Itoa(pageSize))

	var games []models.Game
	for {
		var page struct {
			Data []bdlGame `json:"data"`
			Meta bdlMeta   `json:"meta"`
		}
		if err := c.get(ctx, "/games", params, &page); err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}

		for _, g := range page.Data {
			game, err := g.toModel()
			if err != nil {
				return nil, err
			}
			games = append(games, game)
		}

		if page.Meta.NextCursor == nil {
			return games, nil
		}
		params.Set("cursor", strconv.Itoa(*page.Meta.NextCursor))
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	var headers http.Header
	if c.apiKey != "" {
		headers = http.Header{"Authorization": []string{c.apiKey}}
	}
	return c.http.GetJSON(ctx, c.baseURL+path, params, headers, result)
}

// parseSlateDate accepts "2024-10-22" or an RFC3339 stamp and keeps the date
func parseSlateDate(s string) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, fmt.Errorf("invalid game date %q", s)
	}
	d, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid game date %q: %w", s, err)
	}
	return d, nil
}
