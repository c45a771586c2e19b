package nba

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// LiveScoreboardURL serves today's slate with live scores
const LiveScoreboardURL = "https://cdn.nba.com/static/json/liveData/scoreboard/todaysScoreboard_00.json"

// liveToBallDontLie maps NBA stats team ids to balldontlie team ids
var liveToBallDontLie = map[int]int{
	1610612737: 1,  // Hawks
	1610612738: 2,  // Celtics
	1610612751: 3,  // Nets
	1610612766: 4,  // Hornets
	1610612741: 5,  // Bulls
	1610612739: 6,  // Cavaliers
	1610612742: 7,  // Mavericks
	1610612743: 8,  // Nuggets
	1610612765: 9,  // Pistons
	1610612744: 10, // Warriors
	1610612745: 11, // Rockets
	1610612754: 12, // Pacers
	1610612746: 13, // Clippers
	1610612747: 14, // Lakers
	1610612763: 15, // Grizzlies
	1610612748: 16, // Heat
	1610612749: 17, // Bucks
	1610612750: 18, // Timberwolves
	1610612740: 19, // Pelicans
	1610612752: 20, // Knicks
	1610612760: 21, // Thunder
	1610612753: 22, // Magic
	1610612755: 23, // 76ers
	1610612756: 24, // Suns
	1610612757: 25, // Trail Blazers
	1610612758: 26, // Kings
	1610612759: 27, // Spurs
	1610612761: 28, // Raptors
	1610612762: 29, // Jazz
	1610612764: 30, // Wizards
}

// BallDontLieTeamID translates an NBA stats team id
func BallDontLieTeamID(liveID int) (int, bool) {
	id, ok := liveToBallDontLie[liveID]
	return id, ok
}

// Slate is today's scoreboard
type Slate struct {
	Date  time.Time
	Games []models.Game
}

type liveTeam struct {
	TeamID      int    `json:"teamId"`
	TeamName    string `json:"teamName"`
	TeamCity    string `json:"teamCity"`
	TeamTricode string `json:"teamTricode"`
	Score       int    `json:"score"`
}

type liveGame struct {
	GameID         string   `json:"gameId"`
	GameStatus     int      `json:"gameStatus"`
	GameStatusText string   `json:"gameStatusText"`
	Period         int      `json:"period"`
	GameClock      string   `json:"gameClock"`
	GameEt         string   `json:"gameEt"`
	HomeTeam       liveTeam `json:"homeTeam"`
	AwayTeam       liveTeam `json:"awayTeam"`
}

// LiveClient reads the NBA live scoreboard
type LiveClient struct {
	http *httpclient.Client
	url  string
}

// NewLiveClient creates a live scoreboard client. An empty url uses the CDN.
func NewLiveClient(http *httpclient.Client, url string) *LiveClient {
	if url == "" {
		url = LiveScoreboardURL
	}
	return &LiveClient{http: http, url: url}
}

// TodaysSlate fetches today's games with team ids translated to balldontlie's
func (c *LiveClient) TodaysSlate(ctx context.Context) (*Slate, error) {
	var resp struct {
		Scoreboard struct {
			GameDate string     `json:"gameDate"`
			Games    []liveGame `json:"games"`
		} `json:"scoreboard"`
	}
	if err := c.http.GetJSON(ctx, c.url, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch live scoreboard: %w", err)
	}

	date, err := parseSlateDate(resp.Scoreboard.GameDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read live scoreboard: %w", err)
	}

	slate := &Slate{Date: date, Games: make([]models.Game, 0, len(resp.Scoreboard.Games))}
	for _, g := range resp.Scoreboard.Games {
		game, err := g.toModel(date)
		if err != nil {
			return nil, err
		}
		slate.Games = append(slate.Games, game)
	}
	return slate, nil
}

func (g liveGame) toModel(slateDate time.Time) (models.Game, error) {
	home, ok := BallDontLieTeamID(g.HomeTeam.TeamID)
	if !ok {
		return models.Game{}, fmt.Errorf("game %s: unknown home team id %d", g.GameID, g.HomeTeam.TeamID)
	}
	away, ok := BallDontLieTeamID(g.AwayTeam.TeamID)
	if !ok {
		return models.Game{}, fmt.Errorf("game %s: unknown away team id %d", g.GameID, g.AwayTeam.TeamID)
	}

	id, err := strconv.Atoi(g.GameID)
	if err != nil {
		return models.Game{}, fmt.Errorf("invalid live game id %q: %w", g.GameID, err)
	}

	date := slateDate
	if d, err := parseSlateDate(g.GameEt); err == nil {
		date = d
	}

	status := strings.TrimSpace(g.GameStatusText)
	if strings.HasPrefix(status, models.GameStatusFinal) {
		// "Final/OT" and friends
		status = models.GameStatusFinal
	}

	return models.Game{
		ID:               id,
		Date:             date,
		Status:           status,
		Period:           g.Period,
		Clock:            g.GameClock,
		HomeTeamID:       home,
		VisitorTeamID:    away,
		HomeTeamAbbr:     g.HomeTeam.TeamTricode,
		VisitorTeamAbbr:  g.AwayTeam.TeamTricode,
		HomeTeamScore:    g.HomeTeam.Score,
		VisitorTeamScore: g.AwayTeam.Score,
	}, nil
}
