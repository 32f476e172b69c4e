package auth

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

func TestStartDeviceAuthorization(t *testing.T) {
	store, _, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/oauth2/device_authorize", r.URL.Path)
		assert.Equal(t, "client-123", r.PostForm.Get("client_id"))
		assert.Equal(t, "offline_access", r.PostForm.Get("scope"))
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":               "dev-code",
			"user_code":                 "ABC123",
			"verification_uri":          "https://login.tado.com/oauth2/device",
			"verification_uri_complete": "https://login.tado.com/oauth2/device?user_code=ABC123",
			"expires_in":                300,
			"interval":                  5,
		})
	}, models.Credentials{})

	auth, err := store.StartDeviceAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev-code", auth.DeviceCode)
	assert.Equal(t, "ABC123", auth.UserCode)
	assert.Equal(t, 5*time.Second, auth.PollInterval())
	assert.Equal(t, 5*time.Minute, auth.Timeout())
}

func TestStartDeviceAuthorizationFailure(t *testing.T) {
	store, _, _ := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, models.Credentials{})

	_, err := store.StartDeviceAuthorization(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestPollForTokenTimesOut(t *testing.T) {
	var calls atomic.Int32
	store, _, persister := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "authorization_pending"})
	}, models.Credentials{})

	ok, err := store.PollForToken(context.Background(), "dev-code", 5*time.Second, 15*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(3), calls.Load(), "one attempt per interval within the timeout")
	assert.Empty(t, store.AccessToken())
	assert.Zero(t, persister.count())
}

func TestPollForTokenSucceedsAfterPending(t *testing.T) {
	var calls atomic.Int32
	store, clock, persister := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "dev-code", r.PostForm.Get("device_code"))

		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "authorization_pending"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_in":    600,
		})
	}, models.Credentials{})

	start := clock.Now()
	ok, err := store.PollForToken(context.Background(), "dev-code", 5*time.Second, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 10*time.Second, clock.Now().Sub(start))

	creds := store.Credentials()
	assert.Equal(t, "access", creds.AccessToken)
	assert.Equal(t, "refresh", creds.RefreshToken)
	assert.Equal(t, 1, persister.count())
}

func TestPollForTokenTerminalError(t *testing.T) {
	store, _, _ := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "access_denied",
			"error_description": "the user denied access",
		})
	}, models.Credentials{})

	ok, err := store.PollForToken(context.Background(), "dev-code", time.Second, time.Minute)
	assert.False(t, ok)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "the user denied access")
}

func TestPollForTokenSlowDown(t *testing.T) {
	var calls atomic.Int32
	store, clock, _ := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "slow_down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "access"})
	}, models.Credentials{})

	start := clock.Now()
	ok, err := store.PollForToken(context.Background(), "dev-code", 5*time.Second, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, clock.Now().Sub(start))
}
