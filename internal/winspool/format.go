package winspool

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/chart"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// Labeler turns an owner id into a display name
type Labeler func(owner string) string

func labelOrID(label Labeler, owner string) string {
	if label == nil {
		return owner
	}
	if name := label(owner); name != "" {
		return name
	}
	return owner
}

// LeaderboardText renders the standings as a table
func LeaderboardText(board []LeaderboardEntry, label Labeler) string {
	rows := make([][]string, 0, len(board))
	for _, e := range board {
		rows = append(rows, []string{
			strconv.Itoa(e.Rank),
			labelOrID(label, e.Owner),
			strconv.Itoa(e.Wins),
			strconv.Itoa(e.Losses),
		})
	}
	return render.CodeBlock(render.Table([]string{"Rank", "Owner", "W", "L"}, rows, 1, 3, 4))
}

// BreakdownText renders each owner's teams as one table
func BreakdownText(breakdown []OwnerBreakdown, label Labeler) string {
	rows := make([][]string, 0)
	for _, ob := range breakdown {
		owner := labelOrID(label, ob.Owner)
		for _, t := range ob.Teams {
			rows = append(rows, []string{
				owner,
				t.TeamName,
				strconv.Itoa(t.Wins),
				strconv.Itoa(t.Losses),
				"$" + strconv.Itoa(t.AuctionPrice),
			})
			owner = ""
		}
	}
	return render.CodeBlock(render.Table([]string{"Owner", "Team", "W", "L", "Price"}, rows, 3, 4, 5))
}

// ScoreboardText renders today's games
func ScoreboardText(lines []ScoreLine) string {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{l.Status, l.Score})
	}
	return render.CodeBlock(render.Table([]string{"Status", "Score"}, rows))
}

// RaceChartPNG plots cumulative wins per owner, one line each in owners order
func RaceChartPNG(series []RacePoint, owners []string, label Labeler) ([]byte, error) {
	lines := make([]chart.Series, 0, len(owners))
	for _, owner := range owners {
		s := chart.Series{
			Name:   labelOrID(label, owner),
			Times:  make([]time.Time, 0, len(series)),
			Values: make([]float64, 0, len(series)),
		}
		for _, p := range series {
			s.Times = append(s.Times, p.Date)
			s.Values = append(s.Values, float64(p.Wins[owner]))
		}
		lines = append(lines, s)
	}

	return chart.LinePNG(lines, chart.Options{
		Title:    "Wins race",
		DateOnly: true,
	})
}

// StandingsSummary is the one-line header above the leaderboard
func StandingsSummary(board []LeaderboardEntry, label Labeler) string {
	if len(board) == 0 {
		return ""
	}
	var leaders []string
	for _, e := range board {
		if e.Rank != 1 {
			break
		}
		leaders = append(leaders, labelOrID(label, e.Owner))
	}
	return fmt.Sprintf("Leading with %d wins: %s", board[0].Wins, strings.Join(leaders, ", "))
}
