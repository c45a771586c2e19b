package nba

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/cache"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

const teamsCacheKey = "all"

// Repository combines the live scoreboard with balldontlie history
type Repository struct {
	bdl    *Client
	live   *LiveClient
	cache  *cache.Manager
	logger *zap.Logger
	now    func() time.Time
}

// NewRepository creates a repository. cache may be nil.
func NewRepository(bdl *Client, live *LiveClient, cm *cache.Manager, logger *zap.Logger) *Repository {
	return &Repository{
		bdl:    bdl,
		live:   live,
		cache:  cm,
		logger: logger,
		now:    time.Now,
	}
}

// Teams lists every NBA team, cached for a day
func (r *Repository) Teams(ctx context.Context) ([]models.Team, error) {
	return cache.Fetch(ctx, r.cache, models.CacheTypeNBATeams, teamsCacheKey, r.bdl.Teams)
}

// TodaysSlate returns the live scoreboard
func (r *Repository) TodaysSlate(ctx context.Context) (*Slate, error) {
	return r.live.TodaysSlate(ctx)
}

// Games returns today's live games followed by every balldontlie game from
// seasonStart through the day before today's slate. When the live scoreboard
// is unavailable the history runs through today instead.
func (r *Repository) Games(ctx context.Context, seasonStart time.Time) ([]models.Game, error) {
	var games []models.Game

	end := r.now().UTC()
	slate, err := r.live.TodaysSlate(ctx)
	if err != nil {
		r.logger.Warn("Live scoreboard unavailable, using balldontlie only", zap.Error(err))
	} else {
		games = append(games, slate.Games...)
		end = slate.Date.AddDate(0, 0, -1)
	}

	if end.Before(seasonStart) {
		return games, nil
	}

	past, err := r.bdl.Games(ctx, seasonStart, end)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Fetched NBA games",
		zap.Int("live", len(games)),
		zap.Int("past", len(past)),
		zap.Time("season_start", seasonStart),
		zap.Time("end", end),
	)
	return append(games, past...), nil
}

// FindTeam resolves query against abbreviation, full name, nickname or city,
// case-insensitively. Ambiguous or unknown queries are NotFound.
func FindTeam(teams []models.Team, query string) (models.Team, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return models.Team{}, apperrors.NewValidation("a team name is required")
	}

	for _, t := range teams {
		if strings.ToLower(t.Abbreviation) == q || strings.ToLower(t.FullName) == q {
			return t, nil
		}
	}

	var matches []models.Team
	for _, t := range teams {
		if strings.ToLower(t.Name) == q || strings.ToLower(t.City) == q {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return models.Team{}, apperrors.NewNotFound("team", fmt.Sprintf("no NBA team matches %q", query))
	default:
		return models.Team{}, apperrors.NewNotFound("team", fmt.Sprintf("%q matches more than one team", query))
	}
}
