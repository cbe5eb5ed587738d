package domain

import "time"

// Organisation is a logical grouping of users.
type Organisation struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to an organisation. The (UserID, OrgID) pair is
// unique; the surrogate ID only exists to satisfy the junction table.
type Membership struct {
	ID        int64
	UserID    string
	OrgID     string
	CreatedAt time.Time
}
