// Package auth manages the OAuth2 device-code credentials for the vendor API.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

const (
	// refreshWindow is how close to expiry a token is refreshed eagerly.
	refreshWindow = 60 * time.Second

	// defaultExpiresIn applies when the token response omits expires_in.
	defaultExpiresIn = 600

	grantTypeRefresh    = "refresh_token"
	grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
)

// CredentialsPersister stores credentials after every successful refresh.
type CredentialsPersister interface {
	PersistCredentials(creds models.Credentials) error
}

// TokenResponse represents the OAuth token response.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
}

// Config holds the endpoints and collaborators of a Store.
type Config struct {
	HTTPClient *http.Client
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	ClientID   string
	AuthURL    string
	TokenURL   string
}

// Store owns the credential pair and keeps it valid.
type Store struct {
	persister CredentialsPersister
	client    *http.Client
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	creds     models.Credentials
	cfg       Config
	refreshMu sync.Mutex
	mu        sync.RWMutex
}

// NewStore creates a Store seeded with creds. persister may be nil.
func NewStore(cfg Config, creds models.Credentials, persister CredentialsPersister) *Store {
	s := &Store{
		cfg:       cfg,
		creds:     creds,
		persister: persister,
		client:    cfg.HTTPClient,
		now:       cfg.Now,
		sleep:     cfg.Sleep,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Credentials returns a copy of the current credentials.
func (s *Store) Credentials() models.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// AccessToken returns the current access token.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken
}

// Clear drops the in-memory credentials. The persister is not touched.
func (s *Store) Clear() {
	s.mu.Lock()
	s.creds = models.Credentials{}
	s.mu.Unlock()
}

// EnsureValid refreshes the token when it expires within the next minute.
func (s *Store) EnsureValid(ctx context.Context) error {
	creds := s.Credentials()
	if !creds.HasAccessToken() {
		return newAuthError("ensure valid", "", ErrNotAuthenticated)
	}
	if !creds.ExpiresWithin(s.now(), refreshWindow) {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	refreshToken := s.Credentials().RefreshToken
	if refreshToken == "" {
		return newAuthError("refresh", "no refresh token available", nil)
	}

	data := url.Values{}
	data.Set("client_id", s.cfg.ClientID)
	data.Set("grant_type", grantTypeRefresh)
	data.Set("refresh_token", refreshToken)

	status, body, err := s.postForm(ctx, s.cfg.TokenURL, data)
	if err != nil {
		return newAuthError("refresh", "network error during token refresh", fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	if status != http.StatusOK {
		return newAuthError("refresh", fmt.Sprintf("token refresh failed (status %d): %s", status, string(body)), nil)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return newAuthError("refresh", "failed to parse token response", err)
	}
	if tokenResp.AccessToken == "" {
		return newAuthError("refresh", "token response has no access token", nil)
	}

	creds := s.apply(tokenResp)
	logger.Info("access token refreshed", "token", logger.Redact(creds.AccessToken), "expiry", creds.Expiry)
	s.persist(creds)
	return nil
}

// apply stores a successful token response and returns the new credentials.
// The refresh token is kept when the response does not rotate it.
func (s *Store) apply(tokenResp TokenResponse) models.Credentials {
	expiresIn := tokenResp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds.AccessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		s.creds.RefreshToken = tokenResp.RefreshToken
	}
	s.creds.Expiry = s.now().Add(time.Duration(expiresIn) * time.Second)
	return s.creds
}

func (s *Store) persist(creds models.Credentials) {
	if s.persister == nil {
		return
	}
	if err := s.persister.PersistCredentials(creds); err != nil {
		logger.Error("failed to persist credentials", "error", err)
	}
}

// postForm sends a form-encoded POST and returns the status and body.
func (s *Store) postForm(ctx context.Context, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read token response: %w", err)
	}
	return resp.StatusCode, body, nil
}
