package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/reminder"
)

func (h *Handlers) remindMe(ctx context.Context, inv *Invocation) (*Response, error) {
	r, err := h.services.Reminders.ScheduleText(ctx, reminder.ScheduleRequest{
		UserID:    inv.UserID,
		ChannelID: inv.ChannelID,
		GuildID:   inv.GuildID,
		MessageID: inv.ResponseMessageID(),
		Message:   strings.TrimSpace(inv.String("message")),
	}, inv.String("time"))
	if err != nil {
		return nil, err
	}

	return textResponse(reminder.ConfirmationText(r, h.now())), nil
}

func (h *Handlers) listReminders(ctx context.Context, inv *Invocation) (*Response, error) {
	channelID := inv.ChannelID
	if inv.Bool("all_channels") {
		channelID = ""
	}

	reminders, err := h.services.Reminders.ListForOwner(ctx, inv.UserID, channelID)
	if err != nil {
		return nil, err
	}

	return textResponse(reminder.ListText(reminders, h.now())), nil
}

func (h *Handlers) cancelReminder(ctx context.Context, inv *Invocation) (*Response, error) {
	raw := strings.Trim(strings.TrimSpace(inv.String("id")), "`")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.NewValidation("%q is not a reminder id, see /reminders", raw)
	}

	if err := h.services.Reminders.Cancel(ctx, id, inv.UserID); err != nil {
		return nil, err
	}

	return textResponse("Reminder cancelled."), nil
}
