package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/auth"
)

// ErrLoginTimedOut means the user did not approve the device code in time.
var ErrLoginTimedOut = errors.New("device authorization timed out")

// BeginLogin starts the device flow. The caller shows the user code and
// verification URI, then calls CompleteLogin.
func (m *Manager) BeginLogin(ctx context.Context) (*auth.DeviceAuthorization, error) {
	return m.tokens.StartDeviceAuthorization(ctx)
}

// CompleteLogin waits for the user to approve the device code, then binds
// the options to homeID, or to the first home of the account when homeID is
// zero. The credentials are saved by the token store.
func (m *Manager) CompleteLogin(ctx context.Context, da *auth.DeviceAuthorization, homeID int64) (models.Home, error) {
	ok, err := m.tokens.PollForToken(ctx, da.DeviceCode, da.PollInterval(), da.Timeout())
	if err != nil {
		return models.Home{}, err
	}
	if !ok {
		return models.Home{}, ErrLoginTimedOut
	}

	account, err := m.gateway.GetMe(ctx)
	if err != nil {
		return models.Home{}, fmt.Errorf("failed to list homes: %w", err)
	}

	home, err := selectHome(account.Homes, homeID)
	if err != nil {
		return models.Home{}, err
	}

	opts, err := m.options.SetHome(home)
	if err != nil {
		return models.Home{}, err
	}
	m.gateway.SetHome(opts.Home())
	m.poller.SetOptions(opts)
	m.publishQuota()

	logger.Info("signed in", "account", account.Email, "home", home.ID)
	return home, nil
}

// Logout forgets the stored token pair. The bound home is kept so the next
// login resumes it.
func (m *Manager) Logout() error {
	m.tokens.Clear()
	if err := m.database.ClearCredentials(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	logger.Info("signed out")
	return nil
}

func selectHome(homes []models.Home, homeID int64) (models.Home, error) {
	if len(homes) == 0 {
		return models.Home{}, errors.New("account has no homes")
	}
	if homeID == 0 {
		return homes[0], nil
	}
	for _, h := range homes {
		if h.ID == homeID {
			return h, nil
		}
	}
	return models.Home{}, fmt.Errorf("home %d not found on this account", homeID)
}
