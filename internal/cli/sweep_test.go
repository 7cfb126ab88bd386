package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staleSession = `{"session": {
	"user_id": "harun",
	"session_id": "session_20200101_000000_000000",
	"created_at": "2020-01-01T00:00:00Z",
	"last_activity": "2020-01-01T00:00:00Z",
	"authenticated": true
}}`

func TestSweepOnce(t *testing.T) {
	path := writeTestConfig(t, "http://localhost:8000")

	t.Run("nothing stored", func(t *testing.T) {
		output, err := runCmd(t, "", "--config", path, "sweep", "--once")
		require.NoError(t, err)
		assert.Contains(t, output, "Checked 0 sessions, expired 0")
	})

	t.Run("stale session is reset", func(t *testing.T) {
		_, err := runCmd(t, staleSession, "--config", path, "--session", "old", "session", "import", "-")
		require.NoError(t, err)
		_, err = runCmd(t, "", "--config", path, "--session", "fresh", "session", "init", "harun")
		require.NoError(t, err)

		output, err := runCmd(t, "", "--config", path, "sweep", "--once")
		require.NoError(t, err)
		assert.Contains(t, output, "Checked 2 sessions, expired 1")

		output, err = runCmd(t, "", "--config", path, "session", "list")
		require.NoError(t, err)
		assert.Equal(t, "fresh\n", output)
	})
}

func TestMetricsMux(t *testing.T) {
	mux := metricsMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
