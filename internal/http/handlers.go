package http

import (
	"context"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// HealthChecker reports whether the database is reachable; *database.DB implements it
type HealthChecker interface {
	Health(ctx context.Context) error
}

// FitbitCallback completes a Fitbit authorization; *fitbot.Service implements it
type FitbitCallback interface {
	CompleteCallback(ctx context.Context, state, code string) (*models.OAuthState, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	health HealthChecker
	fitbit FitbitCallback
	logger *zap.Logger
}

// NewHandlers creates a new handlers instance. fitbit may be nil when Fitbit
// is not configured.
func NewHandlers(health HealthChecker, fitbit FitbitCallback, logger *zap.Logger) *Handlers {
	return &Handlers{
		health: health,
		fitbit: fitbit,
		logger: logger,
	}
}

// HealthHandler answers OK when the database responds to a ping
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}

// FitbitCallbackHandler handles the redirect from Fitbit's authorization page
func (h *Handlers) FitbitCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if h.fitbit == nil {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("oauth error from fitbit",
			zap.String("error", errParam),
			zap.String("description", query.Get("error_description")),
		)
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Authorization failed",
			Message: "Fitbit returned an error: " + query.Get("error_description"),
		})
		return
	}

	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		h.renderPage(w, http.StatusBadRequest, page{
			Title:   "Invalid request",
			Message: "Missing required parameters (code or state)",
		})
		return
	}

	oauthState, err := h.fitbit.CompleteCallback(r.Context(), state, code)
	if err != nil {
		if msg, ok := apperrors.UserMessage(err); ok {
			h.logger.Info("fitbit callback rejected", zap.Error(err))
			h.renderPage(w, http.StatusBadRequest, page{Title: "Authorization failed", Message: msg})
			return
		}
		h.logger.Error("failed to handle fitbit callback", zap.Error(err))
		h.renderPage(w, http.StatusInternalServerError, page{
			Title:   "Authorization failed",
			Message: "Failed to complete registration. Please run /fitbot_auth again.",
		})
		return
	}

	h.logger.Info("fitbit account linked",
		zap.String("user_id", oauthState.UserID),
		zap.String("guild_id", oauthState.GuildID),
	)
	h.renderPage(w, http.StatusOK, page{
		Title:   "Registration successful",
		Message: "Fitbot can now read your activity. You can close this window and head back to Discord.",
		OK:      true,
	})
}

type page struct {
	Title   string
	Message string
	OK      bool
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #00B0B9;
        }
        .container {
            background: white;
            padding: 3rem;
            border-radius: 10px;
            text-align: center;
            max-width: 400px;
        }
        h1 { color: {{if .OK}}#2E7D32{{else}}#C62828{{end}}; margin: 0 0 1rem; }
        p { color: #666; margin: 0; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func (h *Handlers) renderPage(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		h.logger.Error("failed to write page", zap.Error(err))
	}
}
