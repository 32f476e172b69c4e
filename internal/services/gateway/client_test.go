package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

type fakeTokens struct {
	ensureErr  error
	refreshErr error
	token      string
	refreshes  atomic.Int32
	ensures    atomic.Int32
	mu         sync.Mutex
}

func (f *fakeTokens) EnsureValid(context.Context) error {
	f.ensures.Add(1)
	return f.ensureErr
}

func (f *fakeTokens) Refresh(context.Context) error {
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = "refreshed"
	return nil
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type memoryRecorder struct {
	calls []models.APICall
	mu    sync.Mutex
}

func (r *memoryRecorder) RecordAPICall(call models.APICall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

type memoryQuota struct {
	last  models.QuotaState
	saves int
	mu    sync.Mutex
}

func (m *memoryQuota) PersistQuota(state models.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = state
	m.saves++
	return nil
}

type testEnv struct {
	client   *Client
	tokens   *fakeTokens
	recorder *memoryRecorder
	quota    *memoryQuota
	requests atomic.Int32
}

func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()
	env := &testEnv{
		tokens:   &fakeTokens{token: "initial"},
		recorder: &memoryRecorder{},
		quota:    &memoryQuota{},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	tracker := quota.NewTracker(nil, now)
	env.client = New(Config{
		HTTPClient:     server.Client(),
		QuotaPersister: env.quota,
		Recorder:       env.recorder,
		Now:            func() time.Time { return now },
		HopsURL:        server.URL + "/hops",
		MyURL:          server.URL + "/my",
		MinderURL:      server.URL + "/minder",
		EIQURL:         server.URL + "/eiq",
	}, env.tokens, tracker)
	env.client.SetHome(models.Home{ID: 42, Name: "Test Home"})
	return env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDoSendsBearerAndCountsQuota(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer initial", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "/my/homes/42/state", r.URL.Path)
		w.Header().Set("ratelimit-policy", `"perday";q=100;w=86400`)
		w.Header().Set("ratelimit", `"perday";r=57`)
		writeJSON(w, http.StatusOK, map[string]any{"presence": "HOME", "presenceLocked": true})
	})

	home, err := env.client.GetHomeState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HOME", home.Presence)
	assert.True(t, home.PresenceLocked)
	assert.Equal(t, "Test Home", home.Name)

	tracker := env.client.tracker
	assert.Equal(t, 1, tracker.CallsToday())
	require.NotNil(t, tracker.QuotaRemaining())
	assert.Equal(t, 57, *tracker.QuotaRemaining())
	assert.Equal(t, 100, *tracker.QuotaLimit())
	assert.Equal(t, 1, env.quota.saves)
	assert.Equal(t, int32(1), env.tokens.ensures.Load())

	require.Len(t, env.recorder.calls, 1)
	call := env.recorder.calls[0]
	assert.Equal(t, http.MethodGet, call.Method)
	assert.Equal(t, "/state", call.Path)
	assert.Equal(t, http.StatusOK, call.StatusCode)
	assert.True(t, call.Succeeded())
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer initial" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer refreshed", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	})

	rooms, err := env.client.GetRooms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.Equal(t, int32(1), env.tokens.refreshes.Load())
	assert.Equal(t, int32(2), env.requests.Load())
}

func TestDoSecond401IsAPIError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := env.client.GetRooms(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), env.tokens.refreshes.Load(), "exactly one refresh")
	assert.Equal(t, int32(2), env.requests.Load(), "exactly one retry")
}

func TestDoRefreshFailureSurfacesAuthError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	env.tokens.refreshErr = &auth.AuthError{Op: "refresh", Message: "invalid_grant"}

	_, err := env.client.GetRooms(context.Background())
	var authErr *auth.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(1), env.requests.Load())
}

func TestDoRateLimitIsNotRetried(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := env.client.GetRooms(context.Background())
	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.False(t, rlErr.ResetTime.IsZero())
	assert.Equal(t, env.client.tracker.ResetTime(), rlErr.ResetTime)
	assert.Equal(t, int32(1), env.requests.Load())
	assert.Zero(t, env.tokens.refreshes.Load())
}

func TestDoNon2xxIsAPIError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := env.client.GetWeather(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "boom")
	require.Len(t, env.recorder.calls, 1)
	assert.False(t, env.recorder.calls[0].Succeeded())
}

func TestDoMalformedJSONIsAPIError(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	})

	_, err := env.client.GetRooms(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestDoTransportErrorIsAPIError(t *testing.T) {
	env := newTestEnv(t, func(http.ResponseWriter, *http.Request) {})
	env.client.cfg.HopsURL = "http://127.0.0.1:1"

	_, err := env.client.GetRooms(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotNil(t, apiErr.Err)
	assert.Equal(t, 1, env.client.tracker.CallsToday())
}

func TestDoHomeNotSet(t *testing.T) {
	env := newTestEnv(t, func(http.ResponseWriter, *http.Request) {})
	env.client.SetHome(models.Home{})

	err := env.client.BoostAll(context.Background())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, errors.Is(err, ErrHomeNotSet))
	assert.Zero(t, env.requests.Load())
	assert.Zero(t, env.client.tracker.CallsToday())
	assert.Zero(t, env.tokens.ensures.Load())
}

func TestDoAuthErrorBeforeRequest(t *testing.T) {
	env := newTestEnv(t, func(http.ResponseWriter, *http.Request) {})
	env.tokens.ensureErr = &auth.AuthError{Op: "ensure valid", Err: auth.ErrNotAuthenticated}

	_, err := env.client.GetRooms(context.Background())
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Zero(t, env.requests.Load())
	assert.Zero(t, env.client.tracker.CallsToday())
}

func TestGetMeDoesNotNeedHome(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/my/me", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"name":  "Ada",
			"email": "ada@example.com",
			"homes": []map[string]any{{"id": 42, "name": "Test Home"}, {"id": 7, "name": "Cabin"}},
		})
	})
	env.client.SetHome(models.Home{})

	account, err := env.client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email)
	require.Len(t, account.Homes, 2)
	assert.Equal(t, int64(7), account.Homes[1].ID)
}

func TestDoHonorsContextWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		writeJSON(w, http.StatusOK, []any{})
	})

	done := make(chan error, 1)
	go func() {
		_, err := env.client.GetRooms(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return env.requests.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := env.client.GetRooms(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), env.requests.Load())
}
