package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 5 * time.Minute
	slowDownIncrement   = 5 * time.Second
)

// DeviceAuthorization is the device authorization response.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// PollInterval returns the server-suggested polling interval.
func (d DeviceAuthorization) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return defaultPollInterval
	}
	return time.Duration(d.Interval) * time.Second
}

// Timeout returns how long the device code stays valid.
func (d DeviceAuthorization) Timeout() time.Duration {
	if d.ExpiresIn <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(d.ExpiresIn) * time.Second
}

// StartDeviceAuthorization begins the device-code flow.
func (s *Store) StartDeviceAuthorization(ctx context.Context) (*DeviceAuthorization, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.ClientID)
	data.Set("scope", "offline_access")

	status, body, err := s.postForm(ctx, s.cfg.AuthURL, data)
	if err != nil {
		return nil, newAuthError("device authorization", "network error", fmt.Errorf("%w: %w", ErrUnreachable, err))
	}
	if status != http.StatusOK {
		return nil, newAuthError("device authorization",
			fmt.Sprintf("failed to start device auth (status %d): %s", status, string(body)), nil)
	}

	var auth DeviceAuthorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, newAuthError("device authorization", "failed to parse response", err)
	}
	if auth.DeviceCode == "" || auth.UserCode == "" {
		return nil, newAuthError("device authorization", "response is missing the device or user code", nil)
	}

	logger.Info("device authorization started", "user_code", auth.UserCode, "verification_uri", auth.VerificationURI)
	return &auth, nil
}

// PollForToken exchanges deviceCode for a token pair. It returns true on
// success and false once timeout has elapsed without the user approving.
// Error responses other than a pending authorization fail with AuthError.
func (s *Store) PollForToken(ctx context.Context, deviceCode string, interval, timeout time.Duration) (bool, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	data := url.Values{}
	data.Set("client_id", s.cfg.ClientID)
	data.Set("device_code", deviceCode)
	data.Set("grant_type", grantTypeDeviceCode)

	start := s.now()
	for s.now().Sub(start) < timeout {
		status, body, err := s.postForm(ctx, s.cfg.TokenURL, data)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Warn("device token poll failed, retrying", "error", err)
			if err := s.sleep(ctx, interval); err != nil {
				return false, err
			}
			continue
		}

		var tokenResp TokenResponse
		if jsonErr := json.Unmarshal(body, &tokenResp); jsonErr != nil && status == http.StatusOK {
			return false, newAuthError("device token", "failed to parse token response", jsonErr)
		}

		if status == http.StatusOK && tokenResp.AccessToken != "" {
			creds := s.apply(tokenResp)
			logger.Info("device authorization completed", "token", logger.Redact(creds.AccessToken))
			s.persist(creds)
			return true, nil
		}

		switch tokenResp.Error {
		case "authorization_pending":
		case "slow_down":
			interval += slowDownIncrement
		default:
			msg := tokenResp.ErrorDescription
			if msg == "" {
				msg = tokenResp.Error
			}
			if msg == "" {
				msg = fmt.Sprintf("unexpected token response (status %d): %s", status, string(body))
			}
			return false, newAuthError("device token", "token error: "+msg, nil)
		}

		if err := s.sleep(ctx, interval); err != nil {
			return false, err
		}
	}

	return false, nil
}
