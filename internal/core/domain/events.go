package domain

import "time"

// UserRegisteredEvent represents the payload for user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	FirstName    string
	LastName     string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// UserUpdatedEvent represents the payload for user.updated messages.
type UserUpdatedEvent struct {
	EventID       string
	UserID        string
	UpdatedBy     string
	ChangedFields []string
	UpdatedAt     time.Time
	Metadata      map[string]any
}

// UserDeletedEvent represents the payload for user.deleted messages.
type UserDeletedEvent struct {
	EventID   string
	UserID    string
	DeletedBy string
	DeletedAt time.Time
	Metadata  map[string]any
}
