package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

const reminderColumns = `id, user_id, channel_id, guild_id, message_id, message, remind_at, created_at`

// CreateReminder inserts a reminder. A zero ID is replaced with a new UUID.
func (db *DB) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	query := `
		INSERT INTO reminders (id, user_id, channel_id, guild_id, message_id, message, remind_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := db.QueryRowContext(ctx, query,
		r.ID,
		r.UserID,
		r.ChannelID,
		r.GuildID,
		r.MessageID,
		r.Message,
		r.RemindAt.UTC(),
	).Scan(&r.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// GetDueReminders returns every reminder whose fire time is at or before now,
// oldest first
func (db *DB) GetDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminders
		WHERE remind_at <= $1
		ORDER BY remind_at ASC, created_at ASC
	`

	return db.queryReminders(ctx, query, now.UTC())
}

// ListRemindersForOwner returns a user's pending reminders ordered by fire time.
// An empty channelID lists reminders across all channels.
func (db *DB) ListRemindersForOwner(ctx context.Context, userID, channelID string) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminders
		WHERE user_id = $1 AND ($2 = '' OR channel_id = $2)
		ORDER BY remind_at ASC, created_at ASC
	`

	return db.queryReminders(ctx, query, userID, channelID)
}

// DeleteReminder removes a reminder by ID
func (db *DB) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	return requireRowsAffected(result, "reminder")
}

// DeleteReminderForOwner removes a reminder only if it belongs to userID
func (db *DB) DeleteReminderForOwner(ctx context.Context, id uuid.UUID, userID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	return requireRowsAffected(result, "reminder")
}

func (db *DB) queryReminders(ctx context.Context, query string, args ...interface{}) ([]*models.Reminder, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		r := &models.Reminder{}
		err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.ChannelID,
			&r.GuildID,
			&r.MessageID,
			&r.Message,
			&r.RemindAt,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.RemindAt = r.RemindAt.UTC()
		reminders = append(reminders, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// requireRowsAffected turns a zero-row write into a NotFoundError for resource
func requireRowsAffected(result sql.Result, resource string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFound(resource, "")
	}

	return nil
}
