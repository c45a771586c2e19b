// Package winspool computes NBA wins pool standings for a guild.
//
// The functions in this file are pure: they work on game and roster snapshots
// fetched by the caller.
package winspool

import (
	"sort"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// NoRosterMessage is the NotFoundError message for a guild without drafted teams
const NoRosterMessage = "no users/teams in this server"

// NoRosterError is returned when a guild has no drafted teams
func NoRosterError() error {
	return apperrors.NewNotFound("roster", NoRosterMessage)
}

// GameOutcome is a game annotated with its winner and loser. Team IDs are 0
// and owners empty when the game is not final, is tied, or the team is not
// owned by anyone in the pool.
type GameOutcome struct {
	Game          models.Game
	WinningTeamID int
	LosingTeamID  int
	WinningOwner  string
	LosingOwner   string
}

// Completed reports whether the game produced a winner
func (o *GameOutcome) Completed() bool {
	return o.WinningTeamID != 0
}

// LeaderboardEntry is one owner's standing
type LeaderboardEntry struct {
	Owner  string
	Wins   int
	Losses int
	Rank   int
}

// RacePoint holds each owner's cumulative wins as of Date
type RacePoint struct {
	Date time.Time
	Wins map[string]int
}

// TeamRecord is one drafted team's record
type TeamRecord struct {
	TeamID       int
	TeamName     string
	Wins         int
	Losses       int
	AuctionPrice int
}

// OwnerBreakdown lists an owner's teams and their combined record
type OwnerBreakdown struct {
	Owner  string
	Teams  []TeamRecord
	Wins   int
	Losses int
}

// ComputeOutcomes annotates every game with its winning and losing team and owner
func ComputeOutcomes(games []models.Game, teamToOwner map[int]string) []GameOutcome {
	outcomes := make([]GameOutcome, 0, len(games))
	for _, g := range games {
		o := GameOutcome{Game: g}

		if g.IsFinal() && g.HomeTeamScore != g.VisitorTeamScore {
			if g.HomeTeamScore > g.VisitorTeamScore {
				o.WinningTeamID, o.LosingTeamID = g.HomeTeamID, g.VisitorTeamID
			} else {
				o.WinningTeamID, o.LosingTeamID = g.VisitorTeamID, g.HomeTeamID
			}
			o.WinningOwner = teamToOwner[o.WinningTeamID]
			o.LosingOwner = teamToOwner[o.LosingTeamID]
		}

		outcomes = append(outcomes, o)
	}
	return outcomes
}

// BuildLeaderboard tallies wins and losses for every owner and ranks them by
// wins descending then losses ascending. Owners with the same record share a
// rank (competition ranking: 1, 2, 2, 4). Owners without games appear at 0-0.
func BuildLeaderboard(outcomes []GameOutcome, owners []string) ([]LeaderboardEntry, error) {
	if len(owners) == 0 {
		return nil, NoRosterError()
	}

	tally := make(map[string]*LeaderboardEntry, len(owners))
	entry := func(owner string) *LeaderboardEntry {
		e, ok := tally[owner]
		if !ok {
			e = &LeaderboardEntry{Owner: owner}
			tally[owner] = e
		}
		return e
	}

	for _, owner := range owners {
		entry(owner)
	}
	for _, o := range outcomes {
		if o.WinningOwner != "" {
			entry(o.WinningOwner).Wins++
		}
		if o.LosingOwner != "" {
			entry(o.LosingOwner).Losses++
		}
	}

	board := make([]LeaderboardEntry, 0, len(tally))
	for _, e := range tally {
		board = append(board, *e)
	}

	sort.Slice(board, func(i, j int) bool {
		if board[i].Wins != board[j].Wins {
			return board[i].Wins > board[j].Wins
		}
		if board[i].Losses != board[j].Losses {
			return board[i].Losses < board[j].Losses
		}
		return board[i].Owner < board[j].Owner
	})

	for i := range board {
		if i > 0 && board[i].Wins == board[i-1].Wins && board[i].Losses == board[i-1].Losses {
			board[i].Rank = board[i-1].Rank
		} else {
			board[i].Rank = i + 1
		}
	}

	return board, nil
}

// BuildRaceSeries returns cumulative wins per owner over time. The first point
// is seasonStart with every owner at zero, followed by one point per calendar
// date, in order, on which at least one game was completed. When a game was
// completed on seasonStart itself the zero point is dated the day before, so
// dates stay strictly increasing. Games before seasonStart are ignored.
func BuildRaceSeries(outcomes []GameOutcome, owners []string, seasonStart time.Time) []RacePoint {
	start := truncateToDate(seasonStart)

	dailyWins := make(map[time.Time]map[string]int)
	for _, o := range outcomes {
		if !o.Completed() {
			continue
		}
		day := truncateToDate(o.Game.Date)
		if day.Before(start) {
			continue
		}
		wins, ok := dailyWins[day]
		if !ok {
			wins = make(map[string]int)
			dailyWins[day] = wins
		}
		if o.WinningOwner != "" {
			wins[o.WinningOwner]++
		}
	}

	days := make([]time.Time, 0, len(dailyWins))
	for day := range dailyWins {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	running := make(map[string]int, len(owners))
	for _, owner := range owners {
		running[owner] = 0
	}

	// games finished on the opening day move the zero point back a day
	opening := start
	if len(days) > 0 && days[0].Equal(start) {
		opening = start.AddDate(0, 0, -1)
	}

	series := make([]RacePoint, 0, len(days)+1)
	series = append(series, RacePoint{Date: opening, Wins: copyCounts(running)})

	for _, day := range days {
		for owner, n := range dailyWins[day] {
			if _, tracked := running[owner]; tracked {
				running[owner] += n
			}
		}
		series = append(series, RacePoint{Date: day, Wins: copyCounts(running)})
	}

	return series
}

// BuildTeamBreakdown returns, for each owner in the given order, the teams
// they own with each team's record and auction price. Teams are sorted by wins
// descending, losses ascending, then price descending.
func BuildTeamBreakdown(
	outcomes []GameOutcome,
	teams []models.Team,
	teamToOwner map[int]string,
	prices map[int]int,
	owners []string,
) []OwnerBreakdown {
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.FullName
	}

	wins := make(map[int]int)
	losses := make(map[int]int)
	for _, o := range outcomes {
		if !o.Completed() {
			continue
		}
		wins[o.WinningTeamID]++
		losses[o.LosingTeamID]++
	}

	byOwner := make(map[string][]TeamRecord)
	for teamID, owner := range teamToOwner {
		name, ok := names[teamID]
		if !ok {
			name = "Unknown team"
		}
		byOwner[owner] = append(byOwner[owner], TeamRecord{
			TeamID:       teamID,
			TeamName:     name,
			Wins:         wins[teamID],
			Losses:       losses[teamID],
			AuctionPrice: prices[teamID],
		})
	}

	breakdown := make([]OwnerBreakdown, 0, len(owners))
	for _, owner := range owners {
		records := byOwner[owner]
		sort.Slice(records, func(i, j int) bool {
			a, b := records[i], records[j]
			if a.Wins != b.Wins {
				return a.Wins > b.Wins
			}
			if a.Losses != b.Losses {
				return a.Losses < b.Losses
			}
			if a.AuctionPrice != b.AuctionPrice {
				return a.AuctionPrice > b.AuctionPrice
			}
			return a.TeamID < b.TeamID
		})

		ob := OwnerBreakdown{Owner: owner, Teams: records}
		for _, r := range records {
			ob.Wins += r.Wins
			ob.Losses += r.Losses
		}
		breakdown = append(breakdown, ob)
	}

	return breakdown
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
