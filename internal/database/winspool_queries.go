package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

const uniqueViolation = "23505"

// CreateWinsPoolTeam drafts a team for a user. Drafting a team that another
// user in the same guild already owns is a ValidationError.
func (db *DB) CreateWinsPoolTeam(ctx context.Context, team *models.WinsPoolTeam) error {
	query := `
		INSERT INTO wins_pool_teams (guild_id, user_id, team_id, team_name, auction_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := db.QueryRowContext(ctx, query,
		team.GuildID,
		team.UserID,
		team.TeamID,
		team.TeamName,
		team.AuctionPrice,
	).Scan(&team.ID, &team.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewValidation("the %s are already drafted in this server", team.TeamName)
		}
		return fmt.Errorf("failed to create wins pool team: %w", err)
	}

	return nil
}

// ListWinsPoolTeams returns a guild's roster ordered by owner then team
func (db *DB) ListWinsPoolTeams(ctx context.Context, guildID string) ([]*models.WinsPoolTeam, error) {
	query := `
		SELECT id, guild_id, user_id, team_id, team_name, auction_price, created_at
		FROM wins_pool_teams
		WHERE guild_id = $1
		ORDER BY user_id, team_id
	`

	rows, err := db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wins pool teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.WinsPoolTeam
	for rows.Next() {
		team := &models.WinsPoolTeam{}
		err := rows.Scan(
			&team.ID,
			&team.GuildID,
			&team.UserID,
			&team.TeamID,
			&team.TeamName,
			&team.AuctionPrice,
			&team.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wins pool team: %w", err)
		}
		teams = append(teams, team)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wins pool teams: %w", err)
	}

	return teams, nil
}

// DeleteWinsPoolTeam releases a drafted team in a guild
func (db *DB) DeleteWinsPoolTeam(ctx context.Context, guildID string, teamID int) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM wins_pool_teams WHERE guild_id = $1 AND team_id = $2`,
		guildID, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete wins pool team: %w", err)
	}

	return requireRowsAffected(result, "wins pool team")
}
