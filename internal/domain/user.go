package domain

import "time"

// User represents a registered identity. The struct is a plain data record;
// membership mutations live on the repositories, never on the entity.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
