package models

import "time"

// User represents an account that can log into the API.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose the hash over the API.
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
