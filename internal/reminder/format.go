package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// DeliveryText is the message posted when a reminder fires
func DeliveryText(r *models.Reminder) string {
	text := fmt.Sprintf("<@%s> :alarm_clock: Here's your reminder!", r.UserID)
	if body := r.Body(); body != "" {
		text += "\n" + render.Quote(body)
	}
	return text
}

// ConfirmationText is the reply sent after a reminder is scheduled
func ConfirmationText(r *models.Reminder, now time.Time) string {
	text := fmt.Sprintf("Reminder set for ~%s (%s)",
		render.RelativeTime(r.RemindAt, now),
		render.DiscordTimestamp(r.RemindAt, "f"),
	)
	if body := r.Body(); body != "" {
		text += "\n" + render.Quote(body)
	}
	return text
}

// ListText renders a user's pending reminders, one per line
func ListText(reminders []*models.Reminder, now time.Time) string {
	if len(reminders) == 0 {
		return "You have no pending reminders."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("You have %d pending reminder(s):", len(reminders)))
	for _, r := range reminders {
		b.WriteString(fmt.Sprintf("\n`%s` %s (%s) in <#%s>",
			r.ID.String(),
			render.DiscordTimestamp(r.RemindAt, "f"),
			render.RelativeTime(r.RemindAt, now),
			r.ChannelID,
		))
		if body := r.Body(); body != "" {
			b.WriteString(": " + truncate(firstLine(body), 80))
		}
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
