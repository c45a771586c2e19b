package winspool

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// ============================================================================
// Fixtures
// ============================================================================

const (
	teamA = 1
	teamB = 2
	teamC = 3
	teamD = 4
	teamE = 5 // never drafted
)

var seasonStart = time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return seasonStart.AddDate(0, 0, n)
}

func final(id int, date time.Time, home, away, homeScore, awayScore int) models.Game {
	return models.Game{
		ID:               id,
		Date:             date,
		Status:           models.GameStatusFinal,
		HomeTeamID:       home,
		VisitorTeamID:    away,
		HomeTeamScore:    homeScore,
		VisitorTeamScore: awayScore,
	}
}

func scheduled(id int, date time.Time, home, away int) models.Game {
	return models.Game{
		ID:            id,
		Date:          date,
		Status:        "7:30 pm ET",
		HomeTeamID:    home,
		VisitorTeamID: away,
	}
}

func seasonGames() []models.Game {
	return []models.Game{
		final(1, day(1), teamA, teamB, 110, 100), // u1 beats u2
		final(2, day(1), teamC, teamE, 95, 99),   // undrafted beats u2
		final(3, day(2), teamD, teamA, 120, 118), // u3 beats u1
		final(4, day(4), teamB, teamC, 101, 99),  // u2 beats u2
		scheduled(5, day(5), teamA, teamD),
	}
}

var teamToOwner = map[int]string{
	teamA: "u1",
	teamB: "u2",
	teamC: "u2",
	teamD: "u3",
}

var owners = []string{"u1", "u2", "u3"}

// ============================================================================
// ComputeOutcomes Tests
// ============================================================================

func TestComputeOutcomes(t *testing.T) {
	outcomes := ComputeOutcomes(seasonGames(), teamToOwner)

	require.Len(t, outcomes, 5)

	assert.Equal(t, teamA, outcomes[0].WinningTeamID)
	assert.Equal(t, "u1", outcomes[0].WinningOwner)
	assert.Equal(t, "u2", outcomes[0].LosingOwner)

	assert.Equal(t, teamE, outcomes[1].WinningTeamID)
	assert.Equal(t, "", outcomes[1].WinningOwner, "undrafted team credits nobody")
	assert.Equal(t, "u2", outcomes[1].LosingOwner)

	assert.Equal(t, "u3", outcomes[2].WinningOwner)
	assert.Equal(t, "u1", outcomes[2].LosingOwner)

	assert.False(t, outcomes[4].Completed(), "scheduled game has no result")
	assert.Empty(t, outcomes[4].WinningOwner)
	assert.Empty(t, outcomes[4].LosingOwner)
}

func TestComputeOutcomes_TiedFinalCreditsNobody(t *testing.T) {
	outcomes := ComputeOutcomes([]models.Game{final(1, day(1), teamA, teamB, 100, 100)}, teamToOwner)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Completed())
	assert.Empty(t, outcomes[0].WinningOwner)
	assert.Empty(t, outcomes[0].LosingOwner)
}

// ============================================================================
// BuildLeaderboard Tests
// ============================================================================

func TestBuildLeaderboard_SingleGameScenario(t *testing.T) {
	games := []models.Game{{
		ID: 1, Date: day(1), Status: models.GameStatusFinal,
		HomeTeamID: teamA, VisitorTeamID: teamB,
		HomeTeamScore: 10, VisitorTeamScore: 5,
	}}
	outcomes := ComputeOutcomes(games, map[int]string{teamA: "u1", teamB: "u2"})

	board, err := BuildLeaderboard(outcomes, []string{"u1", "u2"})

	require.NoError(t, err)
	assert.Equal(t, []LeaderboardEntry{
		{Owner: "u1", Wins: 1, Losses: 0, Rank: 1},
		{Owner: "u2", Wins: 0, Losses: 1, Rank: 2},
	}, board)
}

func TestBuildLeaderboard_Season(t *testing.T) {
	board, err := BuildLeaderboard(ComputeOutcomes(seasonGames(), teamToOwner), owners)

	require.NoError(t, err)
	// u1: 1-1, u2: 1-3 (beat itself: one win one loss), u3: 1-0
	assert.Equal(t, []LeaderboardEntry{
		{Owner: "u3", Wins: 1, Losses: 0, Rank: 1},
		{Owner: "u1", Wins: 1, Losses: 1, Rank: 2},
		{Owner: "u2", Wins: 1, Losses: 3, Rank: 3},
	}, board)
}

func TestBuildLeaderboard_TiesShareRank(t *testing.T) {
	games := []models.Game{
		final(1, day(1), teamA, teamE, 100, 90),
		final(2, day(1), teamB, teamE, 100, 90),
		final(3, day(2), teamE, teamD, 100, 90),
	}
	toOwner := map[int]string{teamA: "u1", teamB: "u2", teamC: "u3", teamD: "u4"}

	board, err := BuildLeaderboard(ComputeOutcomes(games, toOwner), []string{"u1", "u2", "u3", "u4"})

	require.NoError(t, err)
	require.Len(t, board, 4)
	assert.Equal(t, LeaderboardEntry{Owner: "u1", Wins: 1, Losses: 0, Rank: 1}, board[0])
	assert.Equal(t, LeaderboardEntry{Owner: "u2", Wins: 1, Losses: 0, Rank: 1}, board[1])
	assert.Equal(t, LeaderboardEntry{Owner: "u3", Wins: 0, Losses: 0, Rank: 3}, board[2])
	assert.Equal(t, LeaderboardEntry{Owner: "u4", Wins: 0, Losses: 1, Rank: 4}, board[3])
}

func TestBuildLeaderboard_StableUnderPermutation(t *testing.T) {
	games := seasonGames()
	want, err := BuildLeaderboard(ComputeOutcomes(games, teamToOwner), owners)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.Game(nil), games...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		shuffledOwners := append([]string(nil), owners...)
		rng.Shuffle(len(shuffledOwners), func(a, b int) {
			shuffledOwners[a], shuffledOwners[b] = shuffledOwners[b], shuffledOwners[a]
		})

		got, err := BuildLeaderboard(ComputeOutcomes(shuffled, teamToOwner), shuffledOwners)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBuildLeaderboard_EmptyRoster(t *testing.T) {
	_, err := BuildLeaderboard(nil, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, NoRosterMessage, err.Error())
}

// ============================================================================
// BuildRaceSeries Tests
// ============================================================================

func TestBuildRaceSeries(t *testing.T) {
	series := BuildRaceSeries(ComputeOutcomes(seasonGames(), teamToOwner), owners, seasonStart.Add(15*time.Hour))

	require.Len(t, series, 4)

	assert.Equal(t, seasonStart, series[0].Date)
	assert.Equal(t, map[string]int{"u1": 0, "u2": 0, "u3": 0}, series[0].Wins)

	assert.Equal(t, day(1), series[1].Date)
	assert.Equal(t, map[string]int{"u1": 1, "u2": 0, "u3": 0}, series[1].Wins)

	assert.Equal(t, day(2), series[2].Date)
	assert.Equal(t, map[string]int{"u1": 1, "u2": 0, "u3": 1}, series[2].Wins)

	// day 3 had no games; day 5 is only scheduled
	assert.Equal(t, day(4), series[3].Date)
	assert.Equal(t, map[string]int{"u1": 1, "u2": 1, "u3": 1}, series[3].Wins)
}

func TestBuildRaceSeries_MonotonicPerOwner(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	teams := []int{teamA, teamB, teamC, teamD, teamE}

	var games []models.Game
	for i := 0; i < 200; i++ {
		home := teams[rng.Intn(len(teams))]
		away := teams[rng.Intn(len(teams))]
		games = append(games, final(i, day(rng.Intn(60)), home, away, 90+rng.Intn(30), 90+rng.Intn(30)))
	}

	series := BuildRaceSeries(ComputeOutcomes(games, teamToOwner), owners, seasonStart)

	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Date.After(series[i-1].Date))
		for _, owner := range owners {
			assert.GreaterOrEqual(t, series[i].Wins[owner], series[i-1].Wins[owner])
		}
	}
}

func TestBuildRaceSeries_IgnoresGamesBeforeSeasonStart(t *testing.T) {
	games := []models.Game{
		final(1, day(-3), teamA, teamB, 100, 90),
		final(2, day(1), teamA, teamB, 100, 90),
	}

	series := BuildRaceSeries(ComputeOutcomes(games, teamToOwner), owners, seasonStart)

	require.Len(t, series, 2)
	assert.Equal(t, 1, series[1].Wins["u1"])
}

func TestBuildRaceSeries_GameOnSeasonStart(t *testing.T) {
	games := []models.Game{
		final(1, day(0), teamA, teamB, 100, 90),
		final(2, day(2), teamC, teamA, 100, 90),
	}

	series := BuildRaceSeries(ComputeOutcomes(games, teamToOwner), owners, seasonStart)

	require.Len(t, series, 3)

	assert.Equal(t, seasonStart.AddDate(0, 0, -1), series[0].Date)
	assert.Equal(t, map[string]int{"u1": 0, "u2": 0, "u3": 0}, series[0].Wins)

	assert.Equal(t, seasonStart, series[1].Date)
	assert.Equal(t, 1, series[1].Wins["u1"])

	assert.Equal(t, day(2), series[2].Date)
}

func TestBuildRaceSeries_NoGames(t *testing.T) {
	series := BuildRaceSeries(nil, owners, seasonStart)

	require.Len(t, series, 1)
	assert.Equal(t, seasonStart, series[0].Date)
}

// ============================================================================
// BuildTeamBreakdown Tests
// ============================================================================

func TestBuildTeamBreakdown(t *testing.T) {
	teams := []models.Team{
		{ID: teamA, FullName: "Atlanta Hawks"},
		{ID: teamB, FullName: "Boston Celtics"},
		{ID: teamC, FullName: "Brooklyn Nets"},
		{ID: teamD, FullName: "Charlotte Hornets"},
	}
	prices := map[int]int{teamA: 32, teamB: 65, teamC: 120, teamD: 21}

	breakdown := BuildTeamBreakdown(ComputeOutcomes(seasonGames(), teamToOwner), teams, teamToOwner, prices, []string{"u2", "u1", "u3"})

	require.Len(t, breakdown, 3)

	assert.Equal(t, "u2", breakdown[0].Owner)
	assert.Equal(t, []TeamRecord{
		{TeamID: teamB, TeamName: "Boston Celtics", Wins: 1, Losses: 1, AuctionPrice: 65},
		{TeamID: teamC, TeamName: "Brooklyn Nets", Wins: 0, Losses: 2, AuctionPrice: 120},
	}, breakdown[0].Teams)
	assert.Equal(t, 1, breakdown[0].Wins)
	assert.Equal(t, 3, breakdown[0].Losses)

	assert.Equal(t, "u1", breakdown[1].Owner)
	assert.Equal(t, 1, breakdown[1].Wins)
	assert.Equal(t, 1, breakdown[1].Losses)

	assert.Equal(t, "u3", breakdown[2].Owner)
	assert.Equal(t, []TeamRecord{
		{TeamID: teamD, TeamName: "Charlotte Hornets", Wins: 1, Losses: 0, AuctionPrice: 21},
	}, breakdown[2].Teams)
}

func TestBuildTeamBreakdown_PriceBreaksTies(t *testing.T) {
	toOwner := map[int]string{teamA: "u1", teamB: "u1", teamC: "u1"}
	prices := map[int]int{teamA: 10, teamB: 50, teamC: 30}

	breakdown := BuildTeamBreakdown(nil, nil, toOwner, prices, []string{"u1"})

	require.Len(t, breakdown, 1)
	require.Len(t, breakdown[0].Teams, 3)
	assert.Equal(t, teamB, breakdown[0].Teams[0].TeamID)
	assert.Equal(t, teamC, breakdown[0].Teams[1].TeamID)
	assert.Equal(t, teamA, breakdown[0].Teams[2].TeamID)
	assert.Equal(t, "Unknown team", breakdown[0].Teams[0].TeamName)
}
