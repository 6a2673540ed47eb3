package models

import "time"

// Passkey is a one-time password-reset code addressed to an email.
type Passkey struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Passkey   string    `bson:"passkey"`
	CreatedAt time.Time `bson:"created_at"`
}

// Expired reports whether the passkey is no longer usable at now.
// A passkey exactly ttl old is already expired.
func (p *Passkey) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(p.CreatedAt.Add(ttl))
}
