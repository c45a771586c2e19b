package nba

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// ============================================================================
// Test servers
// ============================================================================

const teamsJSON = `{"data":[
	{"id":2,"abbreviation":"BOS","city":"Boston","conference":"East","division":"Atlantic","full_name":"Boston Celtics","name":"Celtics"},
	{"id":14,"abbreviation":"LAL","city":"Los Angeles","conference":"West","division":"Pacific","full_name":"Los Angeles Lakers","name":"Lakers"},
	{"id":13,"abbreviation":"LAC","city":"LA","conference":"West","division":"Pacific","full_name":"LA Clippers","name":"Clippers"}
]}`

func gameJSON(id int, date string, home, away, homeScore, awayScore int, status string) string {
	return fmt.Sprintf(`{"id":%d,"date":%q,"season":2024,"status":%q,"period":4,"time":"","postseason":false,
		"home_team_score":%d,"visitor_team_score":%d,
		"home_team":{"id":%d,"abbreviation":"H%d"},"visitor_team":{"id":%d,"abbreviation":"V%d"}}`,
		id, date, status, homeScore, awayScore, home, home, away, away)
}

const liveJSON = `{"scoreboard":{"gameDate":"2024-10-24","games":[
	{"gameId":"0022400011","gameStatus":3,"gameStatusText":"Final/OT","period":5,"gameClock":"","gameEt":"2024-10-24T19:30:00Z",
	 "homeTeam":{"teamId":1610612738,"teamName":"Celtics","teamCity":"Boston","teamTricode":"BOS","score":122},
	 "awayTeam":{"teamId":1610612747,"teamName":"Lakers","teamCity":"Los Angeles","teamTricode":"LAL","score":118}},
	{"gameId":"0022400012","gameStatus":1,"gameStatusText":"7:30 pm ET","period":0,"gameClock":"","gameEt":"2024-10-24T22:00:00Z",
	 "homeTeam":{"teamId":1610612746,"teamName":"Clippers","teamCity":"LA","teamTricode":"LAC","score":0},
	 "awayTeam":{"teamId":1610612744,"teamName":"Warriors","teamCity":"Golden State","teamTricode":"GSW","score":0}}
]}}`

type fakeAPI struct {
	server     *httptest.Server
	teamCalls  int32
	gameCalls  int32
	liveStatus int
	lastQuery  atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := &fakeAPI{liveStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/teams", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.teamCalls, 1)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(teamsJSON))
	})
	mux.HandleFunc("/v1/games", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.gameCalls, 1)
		api.lastQuery.Store(r.URL.Query())
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprintf(w, `{"data":[%s,%s],"meta":{"next_cursor":77,"per_page":100}}`,
				gameJSON(1, "2024-10-22", 2, 14, 110, 100, "Final"),
				gameJSON(2, "2024-10-22T00:00:00.000Z", 13, 2, 90, 95, "Final"))
		case "77":
			fmt.Fprintf(w, `{"data":[%s],"meta":{"per_page":100}}`,
				gameJSON(3, "2024-10-23", 14, 13, 101, 99, "Final"))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})
	mux.HandleFunc("/live.json", func(w http.ResponseWriter, r *http.Request) {
		if api.liveStatus != http.StatusOK {
			w.WriteHeader(api.liveStatus)
			return
		}
		_, _ = w.Write([]byte(liveJSON))
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (api *fakeAPI) repository() *Repository {
	logger := zap.NewNop()
	hc := httpclient.New(5*time.Second, nil, logger)
	return NewRepository(
		NewClient(hc, api.server.URL+"/v1", "test-key"),
		NewLiveClient(hc, api.server.URL+"/live.json"),
		nil,
		logger,
	)
}

// ============================================================================
// Client Tests
// ============================================================================

func TestClientTeams(t *testing.T) {
	api := newFakeAPI(t)

	teams, err := api.repository().Teams(context.Background())

	require.NoError(t, err)
	require.Len(t, teams, 3)
	assert.Equal(t, models.Team{ID: 2, Abbreviation: "BOS", City: "Boston", Conference: "East", Division: "Atlantic", FullName: "Boston Celtics", Name: "Celtics"}, teams[0])
}

func TestClientGames_FollowsCursor(t *testing.T) {
	api := newFakeAPI(t)
	start := time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 10, 23, 0, 0, 0, 0, time.UTC)

	games, err := api.repository().bdl.Games(context.Background(), start, end)

	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&api.gameCalls))
	assert.Equal(t, start, games[1].Date, "RFC3339 dates are truncated to the slate date")
	assert.Equal(t, "H13", games[1].HomeTeamAbbr)
	assert.True(t, games[2].IsFinal())
}

// ============================================================================
// Live Scoreboard Tests
// ============================================================================

func TestLiveClientTodaysSlate(t *testing.T) {
	api := newFakeAPI(t)

	slate, err := api.repository().TodaysSlate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 24, 0, 0, 0, 0, time.UTC), slate.Date)
	require.Len(t, slate.Games, 2)

	g := slate.Games[0]
	assert.Equal(t, 22400011, g.ID)
	assert.Equal(t, models.GameStatusFinal, g.Status, "overtime finals are normalized")
	assert.Equal(t, 2, g.HomeTeamID)
	assert.Equal(t, 14, g.VisitorTeamID)
	assert.Equal(t, "BOS", g.HomeTeamAbbr)
	assert.Equal(t, 122, g.HomeTeamScore)

	assert.Equal(t, 13, slate.Games[1].HomeTeamID)
	assert.Equal(t, 10, slate.Games[1].VisitorTeamID)
	assert.False(t, slate.Games[1].HasStarted())
}

func TestBallDontLieTeamID_CoversLeague(t *testing.T) {
	seen := make(map[int]bool)
	for live := range liveToBallDontLie {
		id, ok := BallDontLieTeamID(live)
		require.True(t, ok)
		assert.False(t, seen[id], "balldontlie id %d mapped twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 30)

	_, ok := BallDontLieTeamID(42)
	assert.False(t, ok)
}

// ============================================================================
// Repository Tests
// ============================================================================

func TestRepositoryGames_LiveThenHistory(t *testing.T) {
	api := newFakeAPI(t)
	seasonStart := time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC)

	games, err := api.repository().Games(context.Background(), seasonStart)

	require.NoError(t, err)
	require.Len(t, games, 5)
	assert.Equal(t, 22400011, games[0].ID)
	assert.Equal(t, 22400012, games[1].ID)
	assert.Equal(t, 1, games[2].ID)

	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"2024-10-21"}, q["start_date"])
	assert.Equal(t, []string{"2024-10-23"}, q["end_date"], "history stops the day before the live slate")
}

func TestRepositoryGames_LiveUnavailable(t *testing.T) {
	api := newFakeAPI(t)
	api.liveStatus = http.StatusBadGateway
	repo := api.repository()
	repo.now = func() time.Time { return time.Date(2024, 10, 25, 3, 0, 0, 0, time.UTC) }

	games, err := repo.Games(context.Background(), time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Len(t, games, 3)
	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"2024-10-25"}, q["end_date"])
}

func TestRepositoryGames_BeforeSeasonStart(t *testing.T) {
	api := newFakeAPI(t)

	games, err := api.repository().Games(context.Background(), time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Len(t, games, 2, "only the live slate")
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.gameCalls))
}

// ============================================================================
// FindTeam Tests
// ============================================================================

func TestFindTeam(t *testing.T) {
	teams := []models.Team{
		{ID: 2, Abbreviation: "BOS", City: "Boston", FullName: "Boston Celtics", Name: "Celtics"},
		{ID: 13, Abbreviation: "LAC", City: "LA", FullName: "LA Clippers", Name: "Clippers"},
		{ID: 14, Abbreviation: "LAL", City: "Los Angeles", FullName: "Los Angeles Lakers", Name: "Lakers"},
		{ID: 99, Abbreviation: "LAX", City: "Los Angeles", FullName: "Los Angeles Expansion", Name: "Expansion"},
	}

	tests := []struct {
		query   string
		wantID  int
		wantErr func(error) bool
	}{
		{"bos", 2, nil},
		{"Los Angeles Lakers", 14, nil},
		{" clippers ", 13, nil},
		{"Boston", 2, nil},
		{"Los Angeles", 0, apperrors.IsNotFound},
		{"Sonics", 0, apperrors.IsNotFound},
		{"", 0, apperrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			team, err := FindTeam(teams, tt.query)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, team.ID)
		})
	}
}
