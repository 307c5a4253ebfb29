package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmmo/realmd/pkg/account"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := account.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.Create("alice", "hunter2")
	require.NoError(t, err)

	info := Info{
		Name:      "Realm",
		Version:   "1.0.0",
		StartedAt: time.Now().Add(-time.Minute),
	}
	return NewServer(info, repo, nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(t), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	w := get(t, newTestServer(t), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name          string `json:"name"`
		Version       string `json:"version"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		Accounts      int    `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Realm", body.Name)
	assert.Equal(t, "1.0.0", body.Version)
	assert.GreaterOrEqual(t, body.UptimeSeconds, int64(59))
	assert.Equal(t, 1, body.Accounts)
}

func TestStatusWithoutAccountStore(t *testing.T) {
	s := NewServer(Info{Name: "Realm"}, nil, nil)
	w := get(t, s, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	_, present := body["accounts"]
	assert.False(t, present)
}

func TestMetricsExposed(t *testing.T) {
	w := get(t, newTestServer(t), "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
