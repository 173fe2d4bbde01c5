package models

import "time"

// User is a registered account. Users are never updated after creation.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
