package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Access tokens the mock Fitbit server recognises
const (
	MockFitbitAccessToken    = "mock_access_token"
	MockFitbitRefreshToken   = "mock_refresh_token"
	MockFitbitRefreshedToken = "refreshed_access_token"
	MockFitbitSecondToken    = "second_access_token"
	MockFitbitFailingToken   = "server_error"
)

// MockFitbitWeekStart is the first day of the week every time series covers
var MockFitbitWeekStart = time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)

// MockActivity holds the seven daily values per resource, as Fitbit sends them
type MockActivity struct {
	Steps        []string
	Distance     []string
	FairlyActive []string
	VeryActive   []string
}

// MockFitbitServer represents a mock Fitbit Web API server for testing.
type MockFitbitServer struct {
	Server       *httptest.Server
	TokenCalls   atomic.Int32
	SeriesCalls  atomic.Int32
	RefreshCalls atomic.Int32

	mu       sync.Mutex
	activity map[string]MockActivity
}

// FitbitTokenResponse represents the OAuth token response from Fitbit.
type FitbitTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	UserID       string `json:"user_id"`
}

type fitbitError struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

type fitbitErrorResponse struct {
	Errors  []fitbitError `json:"errors"`
	Success bool          `json:"success"`
}

// DefaultMockActivity is the week served for MockFitbitAccessToken and
// MockFitbitRefreshedToken: 28000 steps, 105 active minutes.
func DefaultMockActivity() MockActivity {
	return MockActivity{
		Steps:        []string{"1000", "2000", "3000", "4000", "5000", "6000", "7000"},
		Distance:     []string{"0.5", "1", "1.5", "2", "2.5", "3", "3.5"},
		FairlyActive: []string{"10", "10", "10", "10", "10", "10", "10"},
		VeryActive:   []string{"5", "5", "5", "5", "5", "5", "5"},
	}
}

// SecondMockActivity is the week served for MockFitbitSecondToken:
// 63000 steps, 140 active minutes.
func SecondMockActivity() MockActivity {
	return MockActivity{
		Steps:        []string{"9000", "9000", "9000", "9000", "9000", "9000", "9000"},
		Distance:     []string{"6", "6", "6", "6", "6", "6", "6"},
		FairlyActive: []string{"20", "20", "20", "20", "20", "20", "20"},
		VeryActive:   []string{"0", "0", "0", "0", "0", "0", "0"},
	}
}

// NewMockFitbitServer creates a new mock Fitbit server.
// The server handles the token endpoint and the activity time series.
func NewMockFitbitServer() *MockFitbitServer {
	mfs := &MockFitbitServer{
		activity: map[string]MockActivity{
			MockFitbitAccessToken:    DefaultMockActivity(),
			MockFitbitRefreshedToken: DefaultMockActivity(),
			MockFitbitSecondToken:    SecondMockActivity(),
		},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		mfs.TokenCalls.Add(1)

		if _, _, ok := r.BasicAuth(); !ok {
			writeFitbitError(w, http.StatusUnauthorized, "invalid_client", "Missing client credentials")
			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.FormValue("grant_type") {
		case "refresh_token":
			mfs.RefreshCalls.Add(1)
			if r.FormValue("refresh_token") != MockFitbitRefreshToken {
				writeFitbitError(w, http.StatusBadRequest, "invalid_grant", "Refresh token invalid")
				return
			}
			writeJSON(w, FitbitTokenResponse{
				AccessToken:  MockFitbitRefreshedToken,
				TokenType:    "Bearer",
				ExpiresIn:    28800,
				RefreshToken: "refreshed_refresh_token",
				Scope:        "activity profile",
				UserID:       "ABC123",
			})
			return
		case "authorization_code":
		default:
			writeFitbitError(w, http.StatusBadRequest, "unsupported_grant_type", "Unknown grant type")
			return
		}

		switch r.FormValue("code") {
		case "valid_code":
			writeJSON(w, FitbitTokenResponse{
				AccessToken:  MockFitbitAccessToken,
				TokenType:    "Bearer",
				ExpiresIn:    28800, // 8 hours
				RefreshToken: MockFitbitRefreshToken,
				Scope:        "activity profile",
				UserID:       "ABC123",
			})

		case "error_code":
			writeFitbitError(w, http.StatusBadRequest, "invalid_grant", "Authorization code invalid")

		case "server_error":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Internal Server Error"))

		default:
			writeFitbitError(w, http.StatusBadRequest, "invalid_request", "Unknown code")
		}
	})

	mux.HandleFunc("GET /1/user/-/activities/{resource}/date/today/7d.json", func(w http.ResponseWriter, r *http.Request) {
		mfs.SeriesCalls.Add(1)

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == MockFitbitFailingToken {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		mfs.mu.Lock()
		activity, ok := mfs.activity[token]
		mfs.mu.Unlock()
		if !ok {
			writeFitbitError(w, http.StatusUnauthorized, "invalid_token", "Access token invalid")
			return
		}

		resource := r.PathValue("resource")
		var values []string
		switch resource {
		case "steps":
			values = activity.Steps
		case "distance":
			values = activity.Distance
		case "minutesFairlyActive":
			values = activity.FairlyActive
		case "minutesVeryActive":
			values = activity.VeryActive
		default:
			writeFitbitError(w, http.StatusBadRequest, "validation", "Unknown resource")
			return
		}

		entries := make([]map[string]string, 0, len(values))
		for i, v := range values {
			entries = append(entries, map[string]string{
				"dateTime": MockFitbitWeekStart.AddDate(0, 0, i).Format("2006-01-02"),
				"value":    v,
			})
		}
		writeJSON(w, map[string]interface{}{"activities-" + resource: entries})
	})

	mfs.Server = httptest.NewServer(mux)
	return mfs
}

// SetActivity replaces the week served for an access token
func (mfs *MockFitbitServer) SetActivity(accessToken string, activity MockActivity) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.activity[accessToken] = activity
}

// Close closes the mock server.
func (mfs *MockFitbitServer) Close() {
	if mfs.Server != nil {
		mfs.Server.Close()
	}
}

// AuthURL returns the authorization page URL.
func (mfs *MockFitbitServer) AuthURL() string {
	return fmt.Sprintf("%s/oauth2/authorize", mfs.Server.URL)
}

// TokenURL returns the token exchange endpoint URL.
func (mfs *MockFitbitServer) TokenURL() string {
	return fmt.Sprintf("%s/oauth2/token", mfs.Server.URL)
}

// APIBaseURL returns the per-user API root.
func (mfs *MockFitbitServer) APIBaseURL() string {
	return fmt.Sprintf("%s/1/user/-", mfs.Server.URL)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFitbitError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(fitbitErrorResponse{
		Errors: []fitbitError{{ErrorType: errorType, Message: message}},
	})
}
