// Package models defines data structures and domain types.
package models

import "time"

// APICall represents one vendor request attempt recorded in the call journal.
type APICall struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"requestId"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Error      string    `json:"error,omitempty"`
	ID         int64     `json:"id"`
	StatusCode int       `json:"statusCode"`
	DurationMs int       `json:"durationMs"`
}

// Succeeded reports whether the call returned a 2xx status.
func (c APICall) Succeeded() bool {
	return c.Error == "" && c.StatusCode >= 200 && c.StatusCode < 300
}
