package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/winspool"
)

func requireGuild(inv *Invocation) error {
	if inv.GuildID == "" {
		return apperrors.NewValidation("the wins pool is only available in a server")
	}
	return nil
}

// labeler resolves display names, asking the directory once per user
func (h *Handlers) labeler(ctx context.Context, guildID string) winspool.Labeler {
	names := make(map[string]string)
	return func(userID string) string {
		if name, ok := names[userID]; ok {
			return name
		}
		var name string
		if h.services.Names != nil {
			name = h.services.Names.DisplayName(ctx, guildID, userID)
		}
		names[userID] = name
		return name
	}
}

func (h *Handlers) winsPoolStandings(ctx context.Context, inv *Invocation) (*Response, error) {
	if err := requireGuild(inv); err != nil {
		return nil, err
	}

	standings, err := h.services.WinsPool.GuildStandings(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	label := h.labeler(ctx, inv.GuildID)
	embed := &discordgo.MessageEmbed{
		Title: "NBA Wins Pool Standings",
		URL:   h.services.SheetURL,
		Description: strings.TrimSpace(winspool.StandingsSummary(standings.Leaderboard, label) + "\n" +
			winspool.LeaderboardText(standings.Leaderboard, label)),
		Color: colorOrange,
	}
	resp := embedResponse(embed)

	png, err := winspool.RaceChartPNG(standings.Race, standings.Owners, label)
	if err != nil {
		h.logger.Warn("Failed to render wins race chart",
			zap.String("guild_id", inv.GuildID),
			zap.Error(err),
		)
		return resp, nil
	}
	resp.attachChart(embed, png)

	return resp, nil
}

func (h *Handlers) teamBreakdown(ctx context.Context, inv *Invocation) (*Response, error) {
	if err := requireGuild(inv); err != nil {
		return nil, err
	}

	breakdown, err := h.services.WinsPool.GuildTeamBreakdown(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	return embedResponse(&discordgo.MessageEmbed{
		Title:       "NBA Wins Pool Team Breakdown",
		URL:         h.services.SheetURL,
		Description: winspool.BreakdownText(breakdown, h.labeler(ctx, inv.GuildID)),
		Color:       colorOrange,
	}), nil
}

func (h *Handlers) draftTeam(ctx context.Context, inv *Invocation) (*Response, error) {
	if err := requireGuild(inv); err != nil {
		return nil, err
	}

	owner := inv.User("owner")
	if owner == "" {
		owner = inv.UserID
	}
	price, _ := inv.Int("price")

	team, err := h.services.WinsPool.DraftTeam(ctx, inv.GuildID, owner, inv.String("team"), int(price))
	if err != nil {
		return nil, err
	}

	return textResponse(fmt.Sprintf("<@%s> drafted the %s for $%d", owner, team.TeamName, team.AuctionPrice)), nil
}

func (h *Handlers) releaseTeam(ctx context.Context, inv *Invocation) (*Response, error) {
	if err := requireGuild(inv); err != nil {
		return nil, err
	}

	team, err := h.services.WinsPool.ReleaseTeam(ctx, inv.GuildID, inv.String("team"))
	if err != nil {
		return nil, err
	}

	return textResponse(fmt.Sprintf("The %s are back in the pool", team.FullName)), nil
}

func (h *Handlers) scoreboard(ctx context.Context, inv *Invocation) (*Response, error) {
	lines, err := h.services.WinsPool.Scoreboard(ctx)
	if err != nil {
		return nil, err
	}

	return embedResponse(&discordgo.MessageEmbed{
		Title:       "NBA Scoreboard",
		Description: winspool.ScoreboardText(lines),
		Color:       colorOrange,
	}), nil
}
