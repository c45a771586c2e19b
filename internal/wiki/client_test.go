package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "opensearch", q.Get("action"))
		assert.Equal(t, "1", q.Get("limit"))
		if q.Get("search") == "go programming" {
			_, _ = w.Write([]byte(`["go programming",["Go (programming language)"],[""],["https://en.wikipedia.org/wiki/Go_(programming_language)"]]`))
			return
		}
		_, _ = w.Write([]byte(`["` + q.Get("search") + `",[],[],[]]`))
	}))
	t.Cleanup(server.Close)
	return NewClient(httpclient.New(5*time.Second, nil, zap.NewNop()), server.URL)
}

func TestSearch(t *testing.T) {
	link, err := newTestClient(t).Search(context.Background(), "go programming")

	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(programming_language)", link)
}

func TestSearch_NoResults(t *testing.T) {
	_, err := newTestClient(t).Search(context.Background(), "qwzxv")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "Sorry, couldn't find article for 'qwzxv'", err.Error())
}

func TestSearch_Empty(t *testing.T) {
	_, err := newTestClient(t).Search(context.Background(), "  ")

	assert.True(t, apperrors.IsValidation(err))
}
