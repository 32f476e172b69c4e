package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

// PersistCredentials stores the token pair, replacing any previous one.
func (db *DB) PersistCredentials(creds models.Credentials) error {
	query := `
		INSERT INTO credentials (id, access_token, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`

	expiry := ""
	if !creds.Expiry.IsZero() {
		expiry = formatTime(creds.Expiry)
	}

	_, err := db.ExecContext(context.Background(), query,
		singletonID,
		creds.AccessToken,
		creds.RefreshToken,
		expiry,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the stored token pair, or nil when none was saved.
func (db *DB) LoadCredentials() (*models.Credentials, error) {
	query := `SELECT access_token, refresh_token, expiry FROM credentials WHERE id = ?`

	var creds models.Credentials
	var expiry string
	err := db.QueryRowContext(context.Background(), query, singletonID).Scan(
		&creds.AccessToken,
		&creds.RefreshToken,
		&expiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	if creds.Expiry, err = parseTime(expiry); err != nil {
		return nil, fmt.Errorf("failed to parse credentials expiry: %w", err)
	}
	return &creds, nil
}

// ClearCredentials removes the stored token pair.
func (db *DB) ClearCredentials() error {
	_, err := db.ExecContext(context.Background(), `DELETE FROM credentials WHERE id = ?`, singletonID)
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// PersistQuota stores the quota counter, replacing any previous state.
func (db *DB) PersistQuota(state models.QuotaState) error {
	query := `
		INSERT INTO quota_state (id, calls_today, reset_time, quota_limit, quota_remaining)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			calls_today = excluded.calls_today,
			reset_time = excluded.reset_time,
			quota_limit = excluded.quota_limit,
			quota_remaining = excluded.quota_remaining
	`

	_, err := db.ExecContext(context.Background(), query,
		singletonID,
		state.CallsToday,
		formatTime(state.ResetTime),
		nullInt(state.QuotaLimit),
		nullInt(state.QuotaRemaining),
	)
	if err != nil {
		return fmt.Errorf("failed to persist quota state: %w", err)
	}
	return nil
}

// LoadQuota returns the stored quota counter, or nil when none was saved.
func (db *DB) LoadQuota() (*models.QuotaState, error) {
	query := `SELECT calls_today, reset_time, quota_limit, quota_remaining FROM quota_state WHERE id = ?`

	var state models.QuotaState
	var resetTime string
	var limit, remaining sql.NullInt64
	err := db.QueryRowContext(context.Background(), query, singletonID).Scan(
		&state.CallsToday,
		&resetTime,
		&limit,
		&remaining,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota state: %w", err)
	}

	if state.ResetTime, err = parseTime(resetTime); err != nil {
		return nil, fmt.Errorf("failed to parse quota reset time: %w", err)
	}
	state.QuotaLimit = intPtr(limit)
	state.QuotaRemaining = intPtr(remaining)
	return &state, nil
}

// RecordAPICall appends one request attempt to the call journal.
func (db *DB) RecordAPICall(call models.APICall) error {
	query := `
		INSERT INTO api_calls (
			timestamp, request_id, method, path, status_code, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	timestamp := call.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := db.ExecContext(context.Background(), query,
		formatTime(timestamp),
		nullString(call.RequestID),
		call.Method,
		call.Path,
		call.StatusCode,
		call.DurationMs,
		nullString(call.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert API call: %w", err)
	}
	return nil
}

// RecentAPICalls returns the most recent journal entries, newest first.
func (db *DB) RecentAPICalls(limit int) ([]models.APICall, error) {
	query := `
		SELECT id, timestamp, request_id, method, path, status_code, duration_ms, error
		FROM api_calls
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent API calls: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var calls []models.APICall
	for rows.Next() {
		var call models.APICall
		var timestamp string
		var reqID, errStr sql.NullString

		err := rows.Scan(
			&call.ID,
			&timestamp,
			&reqID,
			&call.Method,
			&call.Path,
			&call.StatusCode,
			&call.DurationMs,
			&errStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API call: %w", err)
		}

		if call.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse API call timestamp: %w", err)
		}
		call.RequestID = reqID.String
		call.Error = errStr.String
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

// CountAPICallsSince returns the number of journal entries at or after since.
func (db *DB) CountAPICallsSince(since time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM api_calls WHERE timestamp >= ?`, formatTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count API calls: %w", err)
	}
	return count, nil
}

// PruneAPICalls deletes journal entries older than before and returns how
// many were removed.
func (db *DB) PruneAPICalls(before time.Time) (int64, error) {
	result, err := db.ExecContext(context.Background(),
		`DELETE FROM api_calls WHERE timestamp < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune API calls: %w", err)
	}
	return result.RowsAffected()
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
