package domain

import "time"

// Supported password digest algorithms.
const (
	PasswordAlgoHMACSHA512 = "hmac-sha512"
	PasswordAlgoArgon2ID   = "argon2id"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	PasswordDigest []byte
	PasswordSalt   []byte
	PasswordAlgo   string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	IsActive       bool
}

// FullName joins the display name components.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Sanitized returns a copy without credential material.
func (u User) Sanitized() User {
	u.PasswordDigest = nil
	u.PasswordSalt = nil
	return u
}
