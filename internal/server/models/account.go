// Package models defines the server-side records persisted by the
// repositories and the validated inputs accepted by the services.
package models

import "time"

// Account is a registered identity. Following and Followers are projections
// of the follow edge table and are filled by the service layer on read.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatar_url"`
	AvatarID     string    `json:"avatar_id"`
	DisplayName  string    `json:"display_name"`
	SignUpDate   time.Time `json:"sign_up_date"`
	IsVerified   bool      `json:"is_verified"`
	Following    []string  `json:"following"`
	Followers    []string  `json:"followers"`
}
