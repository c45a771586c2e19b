package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/fitbot"
)

func (h *Handlers) fitbotAuth(ctx context.Context, inv *Invocation) (*Response, error) {
	url, err := h.services.Fitbit.AuthURL(ctx, inv.UserID, inv.GuildID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf(
		"1. Click on [this link](%s)\n"+
			"2. Check all permissions unless you potentially want to break stuff\n"+
			"3. If the page you land on doesn't confirm registration, copy the value for `code` from its URL\n"+
			"4. Call `/fitbot_register <code>`",
		url,
	)

	return embedResponse(&discordgo.MessageEmbed{
		Title:       "Fitbot Registration",
		URL:         url,
		Description: description,
		Color:       colorFitbitBlue,
	}), nil
}

func (h *Handlers) fitbotRegister(ctx context.Context, inv *Invocation) (*Response, error) {
	code := strings.TrimSpace(inv.String("code"))
	if err := h.services.Fitbit.Register(ctx, inv.UserID, inv.GuildID, code); err != nil {
		return nil, err
	}
	return textResponse("You've been successfully registered"), nil
}

func (h *Handlers) fitbotDisconnect(ctx context.Context, inv *Invocation) (*Response, error) {
	if err := h.services.Fitbit.Disconnect(ctx, inv.UserID, inv.GuildID); err != nil {
		return nil, err
	}
	return textResponse("You've been disconnected from Fitbot"), nil
}

func (h *Handlers) fitbotStats(ctx context.Context, inv *Invocation) (*Response, error) {
	label := h.labeler(ctx, inv.GuildID)

	if inv.Bool("mine") {
		stats, err := h.services.Fitbit.MyWeeklyStats(ctx, inv.UserID, inv.GuildID)
		if err != nil {
			return nil, err
		}
		name := label(inv.UserID)
		if name == "" {
			name = "Your"
		} else {
			name += "'s"
		}
		return embedResponse(&discordgo.MessageEmbed{
			Title:  name + " week on Fitbit",
			Color:  colorFitbitBlue,
			Fields: embedFields(fitbot.Fields(stats)),
		}), nil
	}

	guild, err := h.services.Fitbit.GuildWeeklyStats(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	sections := make([]string, 0, 4)
	for _, m := range []fitbot.Metric{fitbot.MetricActiveMinutes, fitbot.MetricWeeklySteps, fitbot.MetricLastDaySteps} {
		sections = append(sections, fitbot.LeaderboardText(m, guild.Leaderboard(m), label))
	}
	if len(guild.Unavailable) > 0 {
		names := make([]string, 0, len(guild.Unavailable))
		for _, id := range guild.Unavailable {
			if name := label(id); name != "" {
				names = append(names, name)
			} else {
				names = append(names, id)
			}
		}
		sections = append(sections, "Couldn't load stats for: "+strings.Join(names, ", "))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Fitbot Weekly Leaderboards",
		Description: strings.Join(sections, "\n"),
		Color:       colorFitbitBlue,
	}
	resp := embedResponse(embed)

	png, err := guild.StepsChartPNG(label)
	if err != nil {
		h.logger.Warn("Failed to render steps chart", zap.String("guild_id", inv.GuildID), zap.Error(err))
		return resp, nil
	}
	resp.attachChart(embed, png)

	return resp, nil
}
