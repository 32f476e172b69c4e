package models

import "time"

// QuotaState is the daily request counter and the advisory limits reported
// by the vendor through rate-limit headers.
type QuotaState struct {
	ResetTime      time.Time `json:"resetTime"`
	QuotaLimit     *int      `json:"quotaLimit,omitempty"`
	QuotaRemaining *int      `json:"quotaRemaining,omitempty"`
	CallsToday     int       `json:"callsToday"`
}

// Clone returns a copy that shares no pointers with q.
func (q QuotaState) Clone() QuotaState {
	out := q
	if q.QuotaLimit != nil {
		v := *q.QuotaLimit
		out.QuotaLimit = &v
	}
	if q.QuotaRemaining != nil {
		v := *q.QuotaRemaining
		out.QuotaRemaining = &v
	}
	return out
}
