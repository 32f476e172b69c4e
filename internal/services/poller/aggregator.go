// Package poller merges the vendor read endpoints into one snapshot on a
// tier-dependent interval.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/metrics"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/gateway"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

const (
	// runningTimesTTL bounds how often the running times report is fetched.
	runningTimesTTL = time.Hour
	// runningTimesWindow is the look-back of the running times report.
	runningTimesWindow = 7 * 24 * time.Hour
)

// Gateway is the set of read operations a cycle issues.
type Gateway interface {
	GetHomeState(ctx context.Context) (models.Home, error)
	GetRooms(ctx context.Context) (map[int]models.Room, error)
	GetRoomsAndDevices(ctx context.Context) (*gateway.RoomsAndDevices, error)
	GetWeather(ctx context.Context) (*models.Weather, error)
	GetMobileDevices(ctx context.Context) (map[int64]models.MobileDevice, error)
	GetAirComfort(ctx context.Context) (*models.AirComfort, error)
	GetRunningTimes(ctx context.Context, from time.Time) (*models.RunningTimes, error)
}

// QuotaSource reports the current quota state.
type QuotaSource interface {
	State() models.QuotaState
}

// State is the aggregator's cycle state.
type State int32

const (
	// Idle means no cycle is running.
	Idle State = iota
	// Refreshing means a cycle is in flight.
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// EventType defines the type of aggregator event.
type EventType int

const (
	// EventCycleCompleted indicates a new snapshot was published.
	EventCycleCompleted EventType = iota
	// EventCycleFailed indicates a mandatory read failed and the previous snapshot was kept.
	EventCycleFailed
	// EventIntervalChanged indicates the effective poll interval changed.
	EventIntervalChanged
)

// Event represents an aggregator event.
type Event struct {
	Error    error
	Snapshot *models.Snapshot
	Type     EventType
	Interval time.Duration
}

// Config holds the collaborators and initial options of an Aggregator.
type Config struct {
	QuotaPersister quota.Persister
	Metrics        *metrics.Metrics
	Now            func() time.Time
	Options        models.Options
}

// Aggregator runs poll cycles and publishes snapshots.
type Aggregator struct {
	gw        Gateway
	quota     QuotaSource
	persister quota.Persister
	metrics   *metrics.Metrics
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	eventChan chan Event
	stopChan  chan struct{}
	resetChan chan time.Duration
	snapshot  atomic.Pointer[models.Snapshot]
	lastRT    time.Time
	group     singleflight.Group
	opts      models.Options
	interval  time.Duration
	wg        sync.WaitGroup
	mu        sync.RWMutex
	stopOnce  sync.Once
	state     atomic.Int32
	started   atomic.Bool
}

// New creates an aggregator. Call Start to begin ticking.
func New(gw Gateway, quotaSource QuotaSource, cfg Config) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		gw:        gw,
		quota:     quotaSource,
		persister: cfg.QuotaPersister,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		ctx:       ctx,
		cancel:    cancel,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
		resetChan: make(chan time.Duration, 1),
		opts:      cfg.Options,
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.interval = effectiveInterval(cfg.Options)
	a.metrics.SetPollInterval(a.interval)
	return a
}

func effectiveInterval(opts models.Options) time.Duration {
	return quota.PollInterval(opts.ScanInterval(), quota.TierFor(opts.HasAutoAssist))
}

// Events returns the event channel.
func (a *Aggregator) Events() <-chan Event {
	return a.eventChan
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful cycle. The result must not be modified.
func (a *Aggregator) Snapshot() *models.Snapshot {
	return a.snapshot.Load()
}

// State reports whether a cycle is in flight.
func (a *Aggregator) State() State {
	return State(a.state.Load())
}

// Interval returns the effective poll interval.
func (a *Aggregator) Interval() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interval
}

// Options returns the current options.
func (a *Aggregator) Options() models.Options {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.opts
}

// SetOptions applies new options. The poll interval is recomputed and a
// running ticker is reset when it changes.
func (a *Aggregator) SetOptions(opts models.Options) {
	next := effectiveInterval(opts)

	a.mu.Lock()
	changed := next != a.interval
	a.opts = opts
	a.interval = next
	a.mu.Unlock()

	if !changed {
		return
	}

	logger.Info("poll interval changed", "interval", next)
	a.metrics.SetPollInterval(next)

	select {
	case <-a.resetChan:
	default:
	}
	select {
	case a.resetChan <- next:
	default:
	}

	a.sendEvent(Event{Type: EventIntervalChanged, Interval: next})
}

// Start begins the periodic loop. The first tick fires after one interval;
// callers wanting an immediate snapshot call Refresh first.
func (a *Aggregator) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	a.wg.Add(1)
	go a.run()
}

func (a *Aggregator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.Refresh(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("scheduled refresh failed", "error", err)
			}
		case d := <-a.resetChan:
			ticker.Reset(d)
		case <-a.stopChan:
			return
		}
	}
}

// Stop ends the loop and cancels an in-flight scheduled cycle.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		close(a.stopChan)
	})
	a.wg.Wait()
}

// Refresh runs one cycle, or joins the cycle already in flight. The cycle
// runs under the aggregator's lifetime; cancelling ctx only stops this
// caller from waiting.
func (a *Aggregator) Refresh(ctx context.Context) (*models.Snapshot, error) {
	ch := a.group.DoChan("cycle", func() (any, error) {
		return a.cycle(a.ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Aggregator) cycle(ctx context.Context) (*models.Snapshot, error) {
	a.state.Store(int32(Refreshing))
	defer a.state.Store(int32(Idle))

	prev := a.snapshot.Load()
	opts := a.Options()

	var (
		home  models.Home
		rooms map[int]models.Room
		rd    *gateway.RoomsAndDevices
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		home, err = a.gw.GetHomeState(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rooms, err = a.gw.GetRooms(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rd, err = a.gw.GetRoomsAndDevices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("poll cycle failed, keeping previous snapshot", "error", err)
		a.metrics.ObserveCycle(false)
		a.sendEvent(Event{Type: EventCycleFailed, Error: err})
		return nil, err
	}

	snap := models.NewSnapshot(home)
	snap.Rooms = rooms
	mergeDevices(snap, rd, rooms)

	a.readOptional(ctx, snap, prev, opts.Features())

	snap.Quota = a.quota.State()
	snap.UpdatedAt = a.now()
	a.snapshot.Store(snap)

	if a.persister != nil {
		if err := a.persister.PersistQuota(snap.Quota); err != nil {
			logger.Error("failed to persist quota state", "error", err)
		}
	}

	a.metrics.ObserveCycle(true)
	a.metrics.ObserveSnapshot(snap)
	logger.Debug("poll cycle completed", "rooms", len(snap.Rooms), "devices", len(snap.Devices), "stale", snap.Stale)
	a.sendEvent(Event{Type: EventCycleCompleted, Snapshot: snap})
	return snap, nil
}

// mergeDevices copies the devices into the snapshot and fills in the room
// setpoint and name from the rooms read.
func mergeDevices(snap *models.Snapshot, rd *gateway.RoomsAndDevices, rooms map[int]models.Room) {
	if rd == nil {
		return
	}
	for serial, d := range rd.Devices {
		if d.RoomID != nil {
			if r, ok := rooms[*d.RoomID]; ok {
				d.TargetTemperature = r.TargetTemperature
				if d.RoomName == "" {
					d.RoomName = r.Name
				}
			}
		}
		snap.Devices[serial] = d
	}
}

// readOptional issues the enabled optional reads. A failed read keeps the
// previous value and marks the section stale. After a rate limit the
// remaining reads are skipped.
func (a *Aggregator) readOptional(ctx context.Context, snap, prev *models.Snapshot, features models.Features) {
	rateLimited := false

	fetch := func(section string, enabled bool, read func() error, keep func()) {
		if !enabled {
			return
		}
		if rateLimited {
			keep()
			snap.Stale = append(snap.Stale, section)
			return
		}
		if err := read(); err != nil {
			var rl *gateway.RateLimitError
			if errors.As(err, &rl) {
				rateLimited = true
			}
			logger.Warn("optional read failed, keeping previous value", "section", section, "error", err)
			keep()
			snap.Stale = append(snap.Stale, section)
		}
	}

	fetch(models.SectionWeather, features.Weather, func() error {
		w, err := a.gw.GetWeather(ctx)
		if err == nil {
			snap.Weather = w
		}
		return err
	}, func() {
		if prev != nil {
			snap.Weather = prev.Weather
		}
	})

	fetch(models.SectionMobileDevices, features.MobileDevices, func() error {
		m, err := a.gw.GetMobileDevices(ctx)
		if err == nil {
			snap.MobileDevices = m
		}
		return err
	}, func() {
		if prev != nil {
			snap.MobileDevices = prev.MobileDevices
		}
	})

	fetch(models.SectionAirComfort, features.AirComfort, func() error {
		ac, err := a.gw.GetAirComfort(ctx)
		if err == nil {
			snap.AirComfort = ac
		}
		return err
	}, func() {
		if prev != nil {
			snap.AirComfort = prev.AirComfort
		}
	})

	if features.RunningTimes && prev != nil && prev.RunningTimes != nil && a.now().Sub(a.lastRT) < runningTimesTTL {
		snap.RunningTimes = prev.RunningTimes
		return
	}
	fetch(models.SectionRunningTimes, features.RunningTimes, func() error {
		now := a.now()
		from := now.Add(-runningTimesWindow).Truncate(24 * time.Hour)
		rt, err := a.gw.GetRunningTimes(ctx, from)
		if err == nil {
			snap.RunningTimes = rt
			a.lastRT = now
		}
		return err
	}, func() {
		if prev != nil {
			snap.RunningTimes = prev.RunningTimes
		}
	})
}

// sendEvent sends an event to the event channel non-blocking.
func (a *Aggregator) sendEvent(event Event) {
	select {
	case a.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-a.eventChan:
		default:
		}
		select {
		case a.eventChan <- event:
		default:
		}
	}
}
