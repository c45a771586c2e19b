package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReminder_IsDue(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		remindAt time.Time
		want     bool
	}{
		{"in the past", now.Add(-time.Minute), true},
		{"exactly now", now, true},
		{"in the future", now.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reminder{ID: uuid.New(), RemindAt: tt.remindAt}
			assert.Equal(t, tt.want, r.IsDue(now))
		})
	}
}

func TestReminder_Body(t *testing.T) {
	r := &Reminder{}
	assert.Equal(t, "", r.Body())

	r.Message = sql.NullString{String: "stretch", Valid: true}
	assert.Equal(t, "stretch", r.Body())
}
