// Package quota tracks the vendor's daily request quota.
package quota

import (
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

var (
	policyQuotaRe    = regexp.MustCompile(`q=(\d+)`)
	remainingQuotaRe = regexp.MustCompile(`r=(\d+)`)
)

// Persister stores the quota state so the counter survives restarts.
type Persister interface {
	PersistQuota(state models.QuotaState) error
}

// Tracker counts requests made in the current reset window.
type Tracker struct {
	resetTime  time.Time
	limit      *int
	remaining  *int
	callsToday int
	mu         sync.RWMutex
}

// NewTracker creates a tracker, resuming persisted when its reset time is
// still ahead of now.
func NewTracker(persisted *models.QuotaState, now time.Time) *Tracker {
	t := &Tracker{resetTime: NextResetTime(now)}
	if persisted == nil {
		return t
	}

	if persisted.ResetTime.After(now) {
		t.callsToday = max(persisted.CallsToday, 0)
		t.resetTime = persisted.ResetTime.UTC()
		st := persisted.Clone()
		t.limit = st.QuotaLimit
		t.remaining = st.QuotaRemaining
	}
	return t
}

// RecordCall counts one request made at now. The first call at or after the
// reset boundary starts a new window and counts as 1.
func (t *Tracker) RecordCall(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !now.Before(t.resetTime) {
		t.callsToday = 1
		t.resetTime = NextResetTime(now)
		return
	}
	t.callsToday++
}

// ObserveHeaders updates the advisory limit and remaining values from the
// ratelimit-policy and ratelimit headers. Missing or malformed values leave
// the previous readings in place.
func (t *Tracker) ObserveHeaders(h http.Header) {
	if h == nil {
		return
	}

	limit, limitOK := matchInt(policyQuotaRe, h.Get("ratelimit-policy"))
	remaining, remainingOK := matchInt(remainingQuotaRe, h.Get("ratelimit"))
	if !limitOK && !remainingOK {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if limitOK {
		t.limit = &limit
	}
	if remainingOK {
		t.remaining = &remaining
	}
}

func matchInt(re *regexp.Regexp, value string) (int, bool) {
	if value == "" {
		return 0, false
	}
	m := re.FindStringSubmatch(value)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CallsToday returns the number of calls in the current window.
func (t *Tracker) CallsToday() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.callsToday
}

// ResetTime returns the end of the current window.
func (t *Tracker) ResetTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resetTime
}

// QuotaLimit returns the last limit reported by the vendor, if any.
func (t *Tracker) QuotaLimit() *int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyInt(t.limit)
}

// QuotaRemaining returns the last remaining count reported by the vendor, if any.
func (t *Tracker) QuotaRemaining() *int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyInt(t.remaining)
}

// State returns a copy of the current quota state.
func (t *Tracker) State() models.QuotaState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return models.QuotaState{
		CallsToday:     t.callsToday,
		ResetTime:      t.resetTime,
		QuotaLimit:     copyInt(t.limit),
		QuotaRemaining: copyInt(t.remaining),
	}
}

// EffectiveLimit returns the vendor-reported limit, falling back to the tier quota.
func (t *Tracker) EffectiveLimit(tier SubscriptionTier) int {
	if l := t.QuotaLimit(); l != nil && *l > 0 {
		return *l
	}
	return tier.DailyLimit()
}

// Remaining returns the vendor-reported remaining count, or an estimate from
// the local counter when the vendor has not reported one.
func (t *Tracker) Remaining(tier SubscriptionTier) int {
	if r := t.QuotaRemaining(); r != nil {
		return *r
	}
	return max(t.EffectiveLimit(tier)-t.CallsToday(), 0)
}

// UsagePercent returns quota consumption in the range 0..100.
func (t *Tracker) UsagePercent(tier SubscriptionTier) float64 {
	limit := t.EffectiveLimit(tier)
	if limit <= 0 {
		return 0
	}
	used := limit - t.Remaining(tier)
	pct := float64(used) / float64(limit) * 100
	return min(max(pct, 0), 100)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Status is the quota view shown to hosts.
type Status struct {
	State        models.QuotaState `json:"state"`
	Tier         SubscriptionTier  `json:"tier"`
	Limit        int               `json:"limit"`
	Remaining    int               `json:"remaining"`
	UsagePercent float64           `json:"usagePercent"`
}

// Status resolves the tracker state against tier.
func (t *Tracker) Status(tier SubscriptionTier) Status {
	return Status{
		State:        t.State(),
		Tier:         tier,
		Limit:        t.EffectiveLimit(tier),
		Remaining:    t.Remaining(tier),
		UsagePercent: t.UsagePercent(tier),
	}
}
