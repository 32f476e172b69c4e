package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

func intRef(v int) *int { return &v }

func TestLoadCredentials_Empty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	creds, err := db.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials() failed: %v", err)
	}
	if creds != nil {
		t.Errorf("LoadCredentials() = %+v, want nil", creds)
	}
}

func TestPersistCredentials_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	expiry := time.Date(2026, 3, 1, 12, 30, 15, 250*int(time.Millisecond), time.UTC)
	if err := db.PersistCredentials(models.Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}); err != nil {
		t.Fatalf("PersistCredentials() failed: %v", err)
	}

	// A second write replaces the row.
	if err := db.PersistCredentials(models.Credentials{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		Expiry:       expiry.Add(time.Hour),
	}); err != nil {
		t.Fatalf("PersistCredentials() failed: %v", err)
	}

	creds, err := db.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials() failed: %v", err)
	}
	if creds == nil {
		t.Fatal("LoadCredentials() returned nil")
	}
	if creds.AccessToken != "access-2" || creds.RefreshToken != "refresh-2" {
		t.Errorf("LoadCredentials() tokens = %q/%q", creds.AccessToken, creds.RefreshToken)
	}
	if !creds.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Errorf("LoadCredentials() expiry = %v, want %v", creds.Expiry, expiry.Add(time.Hour))
	}

	var rows int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM credentials").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("credentials rows = %d, want 1", rows)
	}
}

func TestClearCredentials(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := db.PersistCredentials(models.Credentials{AccessToken: "a"}); err != nil {
		t.Fatalf("PersistCredentials() failed: %v", err)
	}
	if err := db.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials() failed: %v", err)
	}
	creds, err := db.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials() failed: %v", err)
	}
	if creds != nil {
		t.Errorf("LoadCredentials() after clear = %+v, want nil", creds)
	}
}

func TestPersistQuota_RoundTrip(t *testing.T) {
	reset := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state models.QuotaState
	}{
		{
			name:  "counter only",
			state: models.QuotaState{CallsToday: 42, ResetTime: reset},
		},
		{
			name: "with header limits",
			state: models.QuotaState{
				CallsToday:     7,
				ResetTime:      reset,
				QuotaLimit:     intRef(100),
				QuotaRemaining: intRef(93),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			defer db.Close()

			if err := db.PersistQuota(tt.state); err != nil {
				t.Fatalf("PersistQuota() failed: %v", err)
			}

			got, err := db.LoadQuota()
			if err != nil {
				t.Fatalf("LoadQuota() failed: %v", err)
			}
			if got == nil {
				t.Fatal("LoadQuota() returned nil")
			}
			if got.CallsToday != tt.state.CallsToday {
				t.Errorf("CallsToday = %d, want %d", got.CallsToday, tt.state.CallsToday)
			}
			if !got.ResetTime.Equal(tt.state.ResetTime) {
				t.Errorf("ResetTime = %v, want %v", got.ResetTime, tt.state.ResetTime)
			}
			if (got.QuotaLimit == nil) != (tt.state.QuotaLimit == nil) {
				t.Fatalf("QuotaLimit = %v, want %v", got.QuotaLimit, tt.state.QuotaLimit)
			}
			if got.QuotaLimit != nil && *got.QuotaLimit != *tt.state.QuotaLimit {
				t.Errorf("QuotaLimit = %d, want %d", *got.QuotaLimit, *tt.state.QuotaLimit)
			}
			if got.QuotaRemaining != nil && *got.QuotaRemaining != *tt.state.QuotaRemaining {
				t.Errorf("QuotaRemaining = %d, want %d", *got.QuotaRemaining, *tt.state.QuotaRemaining)
			}
		})
	}
}

func TestLoadQuota_Empty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	state, err := db.LoadQuota()
	if err != nil {
		t.Fatalf("LoadQuota() failed: %v", err)
	}
	if state != nil {
		t.Errorf("LoadQuota() = %+v, want nil", state)
	}
}

func TestRecordAPICall(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	call := models.APICall{
		Timestamp:  time.Now().Add(-time.Minute),
		RequestID:  "req-123",
		Method:     "GET",
		Path:       "/homes/1/rooms",
		StatusCode: 200,
		DurationMs: 150,
	}
	if err := db.RecordAPICall(call); err != nil {
		t.Fatalf("RecordAPICall() failed: %v", err)
	}

	failed := models.APICall{
		Method:     "POST",
		Path:       "/homes/1/quickActions/boost",
		StatusCode: 429,
		Error:      "rate limited",
	}
	if err := db.RecordAPICall(failed); err != nil {
		t.Fatalf("RecordAPICall() with error failed: %v", err)
	}

	calls, err := db.RecentAPICalls(10)
	if err != nil {
		t.Fatalf("RecentAPICalls() failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("RecentAPICalls() returned %d calls, want 2", len(calls))
	}

	// Newest first; the zero timestamp was stamped with the current time.
	if calls[0].Path != failed.Path {
		t.Errorf("first call path = %q, want %q", calls[0].Path, failed.Path)
	}
	if calls[0].Error != "rate limited" || calls[0].Succeeded() {
		t.Errorf("first call = %+v, want failed call", calls[0])
	}
	if calls[0].Timestamp.IsZero() {
		t.Error("zero timestamp was not replaced")
	}
	if calls[1].RequestID != "req-123" || !calls[1].Succeeded() {
		t.Errorf("second call = %+v", calls[1])
	}
	if calls[1].ID == 0 {
		t.Error("RecentAPICalls() should populate ID")
	}
}

func TestRecentAPICalls_Limit(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	base := time.Now().Add(-time.Hour)
	for i := range 5 {
		call := models.APICall{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			Method:     "GET",
			Path:       "/me",
			StatusCode: 200,
		}
		if err := db.RecordAPICall(call); err != nil {
			t.Fatalf("RecordAPICall() failed: %v", err)
		}
	}

	calls, err := db.RecentAPICalls(3)
	if err != nil {
		t.Fatalf("RecentAPICalls() failed: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("RecentAPICalls(3) returned %d calls", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].Timestamp.After(calls[i-1].Timestamp) {
			t.Errorf("calls not sorted newest first at %d", i)
		}
	}
}

func TestPruneAPICalls(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	now := time.Now()
	for _, age := range []time.Duration{10 * 24 * time.Hour, 8 * 24 * time.Hour, time.Hour} {
		call := models.APICall{Timestamp: now.Add(-age), Method: "GET", Path: "/me", StatusCode: 200}
		if err := db.RecordAPICall(call); err != nil {
			t.Fatalf("RecordAPICall() failed: %v", err)
		}
	}

	removed, err := db.PruneAPICalls(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneAPICalls() failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("PruneAPICalls() removed %d, want 2", removed)
	}

	count, err := db.CountAPICallsSince(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("CountAPICallsSince() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountAPICallsSince() = %d, want 1", count)
	}
}
