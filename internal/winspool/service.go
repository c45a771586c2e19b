package winspool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/nba"
)

// Store persists drafted teams
type Store interface {
	CreateWinsPoolTeam(ctx context.Context, team *models.WinsPoolTeam) error
	ListWinsPoolTeams(ctx context.Context, guildID string) ([]*models.WinsPoolTeam, error)
	DeleteWinsPoolTeam(ctx context.Context, guildID string, teamID int) error
}

// GameSource provides NBA data; *nba.Repository implements it
type GameSource interface {
	Games(ctx context.Context, seasonStart time.Time) ([]models.Game, error)
	Teams(ctx context.Context) ([]models.Team, error)
	TodaysSlate(ctx context.Context) (*nba.Slate, error)
}

// Standings is a guild's leaderboard and wins race
type Standings struct {
	Leaderboard []LeaderboardEntry
	Race        []RacePoint
	Owners      []string // leaderboard order
}

// ScoreLine is one game on today's scoreboard
type ScoreLine struct {
	Status string
	Score  string
}

// Service answers wins pool commands
type Service struct {
	store       Store
	games       GameSource
	seasonStart time.Time
	logger      *zap.Logger
}

// NewService creates a wins pool service for the season starting at seasonStart
func NewService(store Store, games GameSource, seasonStart time.Time, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		games:       games,
		seasonStart: seasonStart,
		logger:      logger,
	}
}

// SeasonStart returns the first date counted by the race series
func (s *Service) SeasonStart() time.Time {
	return s.seasonStart
}

type roster struct {
	teamToOwner map[int]string
	prices      map[int]int
	owners      []string
}

func (s *Service) roster(ctx context.Context, guildID string) (*roster, error) {
	teams, err := s.store.ListWinsPoolTeams(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, NoRosterError()
	}

	r := &roster{
		teamToOwner: make(map[int]string, len(teams)),
		prices:      make(map[int]int, len(teams)),
	}
	seen := make(map[string]bool)
	for _, t := range teams {
		r.teamToOwner[t.TeamID] = t.UserID
		r.prices[t.TeamID] = t.AuctionPrice
		if !seen[t.UserID] {
			seen[t.UserID] = true
			r.owners = append(r.owners, t.UserID)
		}
	}
	return r, nil
}

// GuildStandings returns the leaderboard and race series for a guild
func (s *Service) GuildStandings(ctx context.Context, guildID string) (*Standings, error) {
	r, err := s.roster(ctx, guildID)
	if err != nil {
		return nil, err
	}

	games, err := s.games.Games(ctx, s.seasonStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	outcomes := ComputeOutcomes(games, r.teamToOwner)
	board, err := BuildLeaderboard(outcomes, r.owners)
	if err != nil {
		return nil, err
	}

	owners := make([]string, len(board))
	for i, e := range board {
		owners[i] = e.Owner
	}

	s.logger.Debug("Computed wins pool standings",
		zap.String("guild_id", guildID),
		zap.Int("games", len(games)),
		zap.Int("owners", len(owners)),
	)

	return &Standings{
		Leaderboard: board,
		Race:        BuildRaceSeries(outcomes, owners, s.seasonStart),
		Owners:      owners,
	}, nil
}

// GuildTeamBreakdown returns every owner's teams with their records, owners
// in leaderboard order.
func (s *Service) GuildTeamBreakdown(ctx context.Context, guildID string) ([]OwnerBreakdown, error) {
	r, err := s.roster(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var (
		games []models.Game
		teams []models.Team
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		games, err = s.games.Games(gctx, s.seasonStart)
		if err != nil {
			return fmt.Errorf("failed to load games: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		teams, err = s.games.Teams(gctx)
		if err != nil {
			return fmt.Errorf("failed to load teams: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcomes := ComputeOutcomes(games, r.teamToOwner)
	board, err := BuildLeaderboard(outcomes, r.owners)
	if err != nil {
		return nil, err
	}
	owners := make([]string, len(board))
	for i, e := range board {
		owners[i] = e.Owner
	}

	return BuildTeamBreakdown(outcomes, teams, r.teamToOwner, r.prices, owners), nil
}

// DraftTeam assigns the team matching teamQuery to userID in the guild
func (s *Service) DraftTeam(ctx context.Context, guildID, userID, teamQuery string, auctionPrice int) (*models.WinsPoolTeam, error) {
	if guildID == "" {
		return nil, apperrors.NewValidation("the wins pool is only available in a server")
	}
	if auctionPrice < 0 {
		return nil, apperrors.NewValidation("auction price cannot be negative")
	}

	teams, err := s.games.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	team, err := nba.FindTeam(teams, teamQuery)
	if err != nil {
		return nil, err
	}

	pick := &models.WinsPoolTeam{
		GuildID:      guildID,
		UserID:       userID,
		TeamID:       team.ID,
		TeamName:     team.FullName,
		AuctionPrice: auctionPrice,
	}
	if err := s.store.CreateWinsPoolTeam(ctx, pick); err != nil {
		return nil, err
	}

	s.logger.Info("Team drafted",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("team", team.FullName),
		zap.Int("auction_price", auctionPrice),
	)
	return pick, nil
}

// ReleaseTeam removes the team matching teamQuery from the guild's pool
func (s *Service) ReleaseTeam(ctx context.Context, guildID, teamQuery string) (*models.Team, error) {
	teams, err := s.games.Teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	team, err := nba.FindTeam(teams, teamQuery)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteWinsPoolTeam(ctx, guildID, team.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("wins pool team", fmt.Sprintf("the %s are not drafted in this server", team.FullName))
		}
		return nil, err
	}
	return &team, nil
}

// Scoreboard lists today's games ordered by status
func (s *Service) Scoreboard(ctx context.Context) ([]ScoreLine, error) {
	slate, err := s.games.TodaysSlate(ctx)
	if err != nil {
		return nil, err
	}
	if len(slate.Games) == 0 {
		return nil, apperrors.NewNotFound("games", "no NBA games today")
	}

	games := append([]models.Game(nil), slate.Games...)
	sort.SliceStable(games, func(i, j int) bool { return games[i].Status < games[j].Status })

	lines := make([]ScoreLine, 0, len(games))
	for _, g := range games {
		lines = append(lines, ScoreLine{Status: g.Status, Score: ScoreText(g)})
	}
	return lines, nil
}

// ScoreText shows the score once a game has started, "HOM vs. AWY" before
func ScoreText(g models.Game) string {
	if !g.HasStarted() {
		return fmt.Sprintf("%s vs. %s", g.HomeTeamAbbr, g.VisitorTeamAbbr)
	}
	return fmt.Sprintf("%s %d, %s %d", g.HomeTeamAbbr, g.HomeTeamScore, g.VisitorTeamAbbr, g.VisitorTeamScore)
}
