package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// sessionDirectory resolves names from the gateway state cache, falling back
// to the REST API
type sessionDirectory struct {
	session *discordgo.Session
	logger  *zap.Logger
}

// DisplayName returns the user's server nickname or username, or "" if the
// user cannot be found.
func (d *sessionDirectory) DisplayName(ctx context.Context, guildID, userID string) string {
	if guildID != "" {
		if m, err := d.session.State.Member(guildID, userID); err == nil {
			return memberName(m)
		}
		if m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx)); err == nil {
			return memberName(m)
		}
	}

	u, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		d.logger.Debug("Failed to look up user", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return u.Username
}

func memberName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return m.User.Username
	}
	return ""
}
