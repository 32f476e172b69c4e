// Package services wires the core services together and routes their events
// to the hosts.
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/tadox-dashboard-tui/internal/config"
	"github.com/j-veylop/tadox-dashboard-tui/internal/db"
	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/metrics"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/auth"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/gateway"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/options"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/poller"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

const (
	// journalRetention is how long API call journal rows are kept.
	journalRetention = 7 * 24 * time.Hour
	dialTimeout      = 10 * time.Second
)

var (
	// ErrReauthRequired means the stored credentials were rejected and the
	// device flow must be run again.
	ErrReauthRequired = errors.New("re-authentication required, run `txd login`")
	// ErrSetupNotReady means the first refresh failed for a reason that may
	// clear on retry.
	ErrSetupNotReady = errors.New("vendor API not ready")
)

type (
	// SnapshotUpdatedEvent is emitted after every successful poll cycle.
	SnapshotUpdatedEvent struct {
		Snapshot *models.Snapshot
	}

	// RefreshFailedEvent is emitted when a poll cycle kept the previous snapshot.
	RefreshFailedEvent struct {
		Error error
	}

	// QuotaUpdatedEvent is emitted when the quota counter changes.
	QuotaUpdatedEvent struct {
		Status quota.Status
	}

	// OptionsChangedEvent is emitted when the options file changes.
	OptionsChangedEvent struct {
		Options  models.Options
		Interval time.Duration
	}

	// IntervalChangedEvent is emitted when the effective poll interval changes.
	IntervalChangedEvent struct {
		Interval time.Duration
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotUpdatedEvent) isServiceEvent() {}
func (RefreshFailedEvent) isServiceEvent()   {}
func (QuotaUpdatedEvent) isServiceEvent()    {}
func (OptionsChangedEvent) isServiceEvent()  {}
func (IntervalChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()           {}

// Notifier shows a desktop notification.
type Notifier func(title, message string) error

func beeepNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithNotifier replaces the desktop notifier.
func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) { m.notify = n }
}

// WithHTTPClient replaces the HTTP client used for vendor calls.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = c }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager orchestrates services and event routing.
type Manager struct {
	cfg         *config.Config
	database    *db.DB
	options     *options.Service
	tokens      *auth.Store
	tracker     *quota.Tracker
	gateway     *gateway.Client
	poller      *poller.Aggregator
	metrics     *metrics.Metrics
	httpClient  *http.Client
	notify      Notifier
	now         func() time.Time
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan ServiceEvent
	rateLimited time.Time
	lastQuota   *quota.Status
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closeOnce   sync.Once
}

// NewManager opens the stores and builds the service graph. Nothing talks to
// the vendor until Start.
func NewManager(cfg *config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		notify:    beeepNotify,
		now:       time.Now,
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient == nil {
		m.httpClient = newHTTPClient(cfg.HTTPTimeout)
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.options, err = options.New(cfg.OptionsPath)
	if err != nil {
		_ = m.database.Close()
		return nil, fmt.Errorf("failed to initialize options: %w", err)
	}

	creds, err := m.database.LoadCredentials()
	if err != nil {
		_ = m.closeStores()
		return nil, err
	}
	if creds == nil {
		creds = &models.Credentials{}
	}

	persisted, err := m.database.LoadQuota()
	if err != nil {
		_ = m.closeStores()
		return nil, err
	}
	if persisted == nil {
		persisted = m.quotaFromJournal()
	}

	m.pruneJournal()

	m.metrics = metrics.New()
	m.tracker = quota.NewTracker(persisted, m.now())
	m.tokens = auth.NewStore(auth.Config{
		HTTPClient: m.httpClient,
		Now:        m.now,
		ClientID:   cfg.ClientID,
		AuthURL:    cfg.AuthURL,
		TokenURL:   cfg.TokenURL,
	}, *creds, m.database)

	m.gateway = gateway.New(gateway.Config{
		HTTPClient:     m.httpClient,
		QuotaPersister: m.database,
		Recorder:       m.database,
		Metrics:        m.metrics,
		Now:            m.now,
		HopsURL:        cfg.HopsURL,
		MyURL:          cfg.MyURL,
		MinderURL:      cfg.MinderURL,
		EIQURL:         cfg.EIQURL,
	}, m.tokens, m.tracker)

	current := m.options.Get()
	m.gateway.SetHome(current.Home())

	m.poller = poller.New(m.gateway, m.tracker, poller.Config{
		QuotaPersister: m.database,
		Metrics:        m.metrics,
		Now:            m.now,
		Options:        current,
	})

	m.wg.Add(1)
	go m.routeEvents()

	return m, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: dialTimeout}).DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

// quotaFromJournal rebuilds the counter for the current window from the call
// journal when no quota row was saved.
func (m *Manager) quotaFromJournal() *models.QuotaState {
	reset := quota.NextResetTime(m.now())
	count, err := m.database.CountAPICallsSince(reset.Add(-24 * time.Hour))
	if err != nil {
		logger.Warn("failed to count journaled calls", "error", err)
		return nil
	}
	if count == 0 {
		return nil
	}
	return &models.QuotaState{CallsToday: count, ResetTime: reset}
}

func (m *Manager) pruneJournal() {
	removed, err := m.database.PruneAPICalls(m.now().Add(-journalRetention))
	if err != nil {
		logger.Warn("failed to prune API call journal", "error", err)
		return
	}
	if removed == 0 {
		return
	}
	logger.Info("pruned API call journal", "rows", removed)
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("failed to vacuum database", "error", err)
	}
}

// Start validates the stored credentials, runs the first poll cycle and
// starts the periodic loop. Setup failures are classified as
// ErrReauthRequired or ErrSetupNotReady; a missing home is returned as the
// gateway's ConfigurationError.
func (m *Manager) Start(ctx context.Context) error {
	creds := m.tokens.Credentials()
	if !creds.HasAccessToken() && creds.RefreshToken == "" {
		m.notifyReauth()
		return ErrReauthRequired
	}

	// Rotates the refresh token before the first poll. Without one, a still
	// valid access token is used as is.
	refresh := m.tokens.Refresh
	if creds.RefreshToken == "" {
		refresh = m.tokens.EnsureValid
	}
	if err := refresh(ctx); err != nil {
		return m.classifySetupError(err)
	}

	if _, err := m.poller.Refresh(ctx); err != nil {
		return m.classifySetupError(err)
	}

	m.poller.Start()
	logger.Info("polling started", "interval", m.poller.Interval(), "home", m.gateway.Home().ID)
	return nil
}

func (m *Manager) classifySetupError(err error) error {
	var (
		cfgErr  *gateway.ConfigurationError
		authErr *auth.AuthError
		apiErr  *gateway.APIError
		rlErr   *gateway.RateLimitError
	)
	switch {
	case errors.As(err, &cfgErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, auth.ErrUnreachable):
		return fmt.Errorf("%w: %w", ErrSetupNotReady, err)
	case errors.As(err, &authErr):
		m.notifyReauth()
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	case errors.As(err, &apiErr), errors.As(err, &rlErr):
		return fmt.Errorf("%w: %w", ErrSetupNotReady, err)
	default:
		return fmt.Errorf("%w: %w", ErrSetupNotReady, err)
	}
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	defer m.wg.Done()
	for {
		select {
		case event := <-m.poller.Events():
			m.handlePollerEvent(event)

		case event := <-m.options.Events():
			m.handleOptionsEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handlePollerEvent(event poller.Event) {
	switch event.Type {
	case poller.EventCycleCompleted:
		m.broadcast(SnapshotUpdatedEvent{Snapshot: event.Snapshot})
		m.publishQuota()

	case poller.EventCycleFailed:
		m.handleFailure("poller", event.Error)
		m.broadcast(RefreshFailedEvent{Error: event.Error})
		m.publishQuota()

	case poller.EventIntervalChanged:
		m.broadcast(IntervalChangedEvent{Interval: event.Interval})
	}
}

func (m *Manager) handleOptionsEvent(event options.Event) {
	switch event.Type {
	case options.EventOptionsChanged:
		m.applyOptions(event.Options)
		m.broadcast(OptionsChangedEvent{Options: event.Options, Interval: m.poller.Interval()})

	case options.EventError:
		m.broadcast(ErrorEvent{Service: "options", Error: event.Error})
	}
}

func (m *Manager) applyOptions(opts models.Options) {
	if m.gateway.Home().ID != opts.HomeID {
		logger.Info("home changed", "home", opts.HomeID)
	}
	m.gateway.SetHome(opts.Home())
	m.poller.SetOptions(opts)
}

// handleFailure raises desktop notifications for failures the user must act on.
func (m *Manager) handleFailure(service string, err error) {
	if err == nil {
		return
	}
	var (
		authErr *auth.AuthError
		rlErr   *gateway.RateLimitError
	)
	switch {
	case errors.As(err, &rlErr):
		m.notifyRateLimit(rlErr)
	case errors.As(err, &authErr) && !errors.Is(err, auth.ErrUnreachable):
		m.notifyReauth()
	default:
		logger.Debug("service failure", "service", service, "error", err)
	}
}

func (m *Manager) notifyReauth() {
	m.sendNotification("Tado X: sign-in required", "Stored credentials were rejected. Run `txd login`.")
}

// notifyRateLimit notifies once per reset window.
func (m *Manager) notifyRateLimit(err *gateway.RateLimitError) {
	m.mu.Lock()
	if !err.ResetTime.IsZero() && !err.ResetTime.After(m.rateLimited) {
		m.mu.Unlock()
		return
	}
	m.rateLimited = err.ResetTime
	m.mu.Unlock()

	body := "The daily API quota is exhausted."
	if !err.ResetTime.IsZero() {
		body = fmt.Sprintf("The daily API quota is exhausted until %s.", err.ResetTime.Local().Format("15:04"))
	}
	m.sendNotification("Tado X: rate limited", body)
}

// publishQuota broadcasts the quota status and raises a notification when
// usage crosses the warning threshold or the counter resets.
func (m *Manager) publishQuota() {
	status := m.Quota()
	m.metrics.SetQuota(status.State, status.Limit, status.Remaining)

	m.mu.Lock()
	prev := m.lastQuota
	m.lastQuota = &status
	m.mu.Unlock()

	if prev != nil && prev.State.CallsToday == status.State.CallsToday && prev.Remaining == status.Remaining {
		return
	}
	m.broadcast(QuotaUpdatedEvent{Status: status})

	if prev == nil {
		return
	}

	warn := float64(m.cfg.QuotaWarnPercent)
	if warn > 0 && prev.UsagePercent < warn && status.UsagePercent >= warn {
		m.sendNotification("Tado X: quota warning",
			fmt.Sprintf("%.0f%% of today's API quota used (%d remaining).", status.UsagePercent, status.Remaining))
	}

	if status.State.ResetTime.After(prev.State.ResetTime) && status.State.CallsToday < prev.State.CallsToday {
		m.sendNotification("Tado X: quota reset", "The daily API quota has been refreshed.")
	}
}

func (m *Manager) sendNotification(title, message string) {
	if m.notify == nil {
		return
	}
	if err := m.notify(title, message); err != nil {
		logger.Debug("desktop notification failed", "error", err)
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	// Send to main event channel
	select {
	case m.eventChan <- event:
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Snapshot returns the latest snapshot, or nil before the first cycle.
func (m *Manager) Snapshot() *models.Snapshot {
	return m.poller.Snapshot()
}

// Tier returns the subscription tier from the options.
func (m *Manager) Tier() quota.SubscriptionTier {
	return quota.TierFor(m.options.Get().HasAutoAssist)
}

// Quota returns the quota status for the configured tier.
func (m *Manager) Quota() quota.Status {
	return m.tracker.Status(m.Tier())
}

// Interval returns the effective poll interval.
func (m *Manager) Interval() time.Duration {
	return m.poller.Interval()
}

// Refreshing reports whether a poll cycle is in flight.
func (m *Manager) Refreshing() bool {
	return m.poller.State() == poller.Refreshing
}

// Options returns the current options.
func (m *Manager) Options() models.Options {
	return m.options.Get()
}

// UpdateOptions edits and saves the options. The change reaches the poller
// through the options event.
func (m *Manager) UpdateOptions(fn func(*models.Options)) (models.Options, error) {
	return m.options.Update(fn)
}

// RequestRefresh runs a poll cycle now, or joins the one in flight.
func (m *Manager) RequestRefresh(ctx context.Context) (*models.Snapshot, error) {
	return m.poller.Refresh(ctx)
}

// RecentCalls returns the newest API call journal entries.
func (m *Manager) RecentCalls(limit int) ([]models.APICall, error) {
	return m.database.RecentAPICalls(limit)
}

// Config returns the process configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Metrics returns the Prometheus collectors.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// InitialState returns the state the TUI renders before the first event.
func (m *Manager) InitialState() (*models.Snapshot, quota.Status) {
	return m.Snapshot(), m.Quota()
}

// Close stops polling and closes the stores.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.poller.Stop()
		close(m.stopChan)
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		err = m.closeStores()
	})
	return err
}

func (m *Manager) closeStores() error {
	var errs []error

	if m.options != nil {
		if err := m.options.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
