// Package bot connects the slash command handlers to a Discord gateway session.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
)

// interactionTimeout bounds a single command; Discord keeps a deferred reply
// editable for 15 minutes.
const interactionTimeout = 30 * time.Second

// NewSession creates a bot session with the intents the commands need
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return session, nil
}

// Bot dispatches slash command interactions to Handlers
type Bot struct {
	session  *discordgo.Session
	handlers *Handlers
	commands map[string]*command
	guildIDs []string
	logger   *zap.Logger

	// ctx is the parent of every interaction context, set by Start
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bot. Commands are registered in guildIDs, or globally when
// guildIDs is empty. services.Names defaults to a lookup through the session.
func New(session *discordgo.Session, guildIDs []string, services Services, logger *zap.Logger) *Bot {
	if services.Names == nil {
		services.Names = &sessionDirectory{session: session, logger: logger}
	}
	handlers := NewHandlers(services, logger)

	b := &Bot{
		session:  session,
		handlers: handlers,
		commands: handlers.commands(),
		guildIDs: guildIDs,
		logger:   logger,
		ctx:      context.Background(),
		cancel:   func() {},
	}

	session.AddHandler(b.handleInteraction)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Bot is ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)),
		)
	})

	return b
}

// Start opens the gateway connection and registers the slash commands
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	appID := b.session.State.User.ID
	defs := b.handlers.Definitions()

	guilds := b.guildIDs
	if len(guilds) == 0 {
		guilds = []string{""}
	}
	for _, guildID := range guilds {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, defs)
		if err != nil {
			return fmt.Errorf("failed to register commands in guild %q: %w", guildID, err)
		}
		b.logger.Info("Registered slash commands",
			zap.String("guild_id", guildID),
			zap.Int("count", len(registered)),
		)
	}

	return nil
}

// Stop closes the gateway connection and waits for in-flight commands
func (b *Bot) Stop() error {
	err := b.session.Close()
	b.wg.Wait()
	b.cancel()
	if err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	cmd, ok := b.commands[data.Name]
	if !ok {
		b.logger.Warn("Unknown command", zap.String("command", data.Name))
		return
	}

	b.wg.Add(1)
	defer b.wg.Done()

	var flags discordgo.MessageFlags
	if cmd.ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		b.logger.Error("Failed to defer interaction response",
			zap.String("command", data.Name),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()

	inv := NewInvocation(interactionUserID(i), i.ChannelID, i.GuildID, data.Options)
	inv.responseMessageID = func() string {
		msg, err := s.InteractionResponse(i.Interaction)
		if err != nil {
			b.logger.Warn("Failed to fetch interaction response message", zap.Error(err))
			return ""
		}
		return msg.ID
	}

	start := time.Now()
	resp, err := b.handlers.run(ctx, cmd, inv)
	fields := []zap.Field{
		zap.String("command", data.Name),
		zap.String("user_id", inv.UserID),
		zap.String("guild_id", inv.GuildID),
		zap.Duration("duration", time.Since(start)),
	}

	switch {
	case err == nil:
		b.logger.Info("Command handled", fields...)
		b.reply(s, i, resp)
	case apperrors.IsUserFacing(err):
		b.logger.Info("Command rejected", append(fields, zap.Error(err))...)
		b.replyError(s, i, cmd, err)
	default:
		b.logger.Error("Command failed", append(fields, zap.Error(err))...)
		b.replyError(s, i, cmd, err)
	}
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, resp *Response) {
	if resp == nil {
		resp = &Response{}
	}
	embeds := resp.Embeds
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &resp.Content,
		Embeds:  &embeds,
		Files:   resp.Files,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	})
	if err != nil {
		b.logger.Error("Failed to send command response", zap.Error(err))
	}
}

// replyError shows the failure to the invoking user only. A public deferred
// reply is removed and replaced with an ephemeral followup.
func (b *Bot) replyError(s *discordgo.Session, i *discordgo.InteractionCreate, cmd *command, cmdErr error) {
	text := errorText(cmd.def.Name, cmdErr)

	if cmd.ephemeral {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &text}); err != nil {
			b.logger.Error("Failed to send error response", zap.Error(err))
		}
		return
	}

	if err := s.InteractionResponseDelete(i.Interaction); err != nil {
		b.logger.Warn("Failed to delete deferred response", zap.Error(err))
	}
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: text,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.logger.Error("Failed to send error followup", zap.Error(err))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
