package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/reminder"
)

// MessageSender posts channel messages; *discordgo.Session implements it
type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ReminderDeliverer posts due reminders as replies to the message that
// scheduled them
type ReminderDeliverer struct {
	sender MessageSender
	logger *zap.Logger
}

// NewReminderDeliverer creates a deliverer
func NewReminderDeliverer(sender MessageSender, logger *zap.Logger) *ReminderDeliverer {
	return &ReminderDeliverer{sender: sender, logger: logger}
}

// Deliver sends the reminder. When the referenced message is gone Discord
// rejects the reply with a 400, and the reminder is posted without it.
func (d *ReminderDeliverer) Deliver(ctx context.Context, r *models.Reminder) error {
	msg := &discordgo.MessageSend{
		Content: reminder.DeliveryText(r),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: []string{r.UserID},
		},
	}
	if r.MessageID.Valid && r.MessageID.String != "" {
		msg.Reference = &discordgo.MessageReference{
			MessageID: r.MessageID.String,
			ChannelID: r.ChannelID,
			GuildID:   r.GuildID.String,
		}
	}

	_, err := d.sender.ChannelMessageSendComplex(r.ChannelID, msg, discordgo.WithContext(ctx))
	if err != nil && msg.Reference != nil && isBadRequest(err) {
		d.logger.Warn("Reminder reply rejected, sending without reference",
			zap.String("reminder_id", r.ID.String()),
			zap.Error(err),
		)
		msg.Reference = nil
		_, err = d.sender.ChannelMessageSendComplex(r.ChannelID, msg, discordgo.WithContext(ctx))
	}
	if err != nil {
		return fmt.Errorf("failed to send reminder to channel %s: %w", r.ChannelID, err)
	}

	return nil
}

func isBadRequest(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) &&
		restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusBadRequest
}
