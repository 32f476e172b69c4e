package models

import "time"

// Credentials holds the OAuth2 token pair for one vendor account.
type Credentials struct {
	Expiry       time.Time `json:"expiry"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
}

// HasAccessToken reports whether an access token is present.
func (c Credentials) HasAccessToken() bool {
	return c.AccessToken != ""
}

// ExpiresWithin reports whether the access token expires within d of now.
func (c Credentials) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !now.Add(d).Before(c.Expiry)
}
