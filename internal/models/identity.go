package models

import "time"

// Identity is the verified caller of an authenticated request.
type Identity struct {
	UID    string         `json:"uid"`
	Email  string         `json:"email,omitempty"`
	Claims map[string]any `json:"claims,omitempty"`
	// ExpiresAt is when the presented credential stops being valid. Zero means unknown.
	ExpiresAt time.Time `json:"-"`
}
