package models

import "time"

// Account is the internal record for a signed-in person. One row per
// external identity, keyed by email.
type Account struct {
	ID        int64     `json:"-"`
	AccountID string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile carries the verified identity fields handed back by the
// OAuth provider after a successful login.
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}
