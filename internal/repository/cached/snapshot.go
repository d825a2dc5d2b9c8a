package cached

import (
	"time"

	"github.com/arklim/user-directory/internal/core/domain"
)

// userSnapshot is the cached JSON form of a user record. It mirrors the stored
// row so that a cache hit and a store read are interchangeable for callers.
type userSnapshot struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	PasswordDigest []byte     `json:"password_digest,omitempty"`
	PasswordSalt   []byte     `json:"password_salt,omitempty"`
	PasswordAlgo   string     `json:"password_algo,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	IsActive       bool       `json:"is_active"`
}

func snapshotOf(u domain.User) userSnapshot {
	return userSnapshot{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordDigest: u.PasswordDigest,
		PasswordSalt:   u.PasswordSalt,
		PasswordAlgo:   u.PasswordAlgo,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		IsActive:       u.IsActive,
	}
}

func (s userSnapshot) user() domain.User {
	return domain.User{
		ID:             s.ID,
		Email:          s.Email,
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		PasswordDigest: s.PasswordDigest,
		PasswordSalt:   s.PasswordSalt,
		PasswordAlgo:   s.PasswordAlgo,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		IsActive:       s.IsActive,
	}
}
