package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleAssignment grants a user one role. Teachers carry the group scopes
// they may act on; admin and student scopes are always empty. A user may
// hold several assignments at once.
type RoleAssignment struct {
	ID        string
	UserID    string
	Role      string
	GroupIDs  []string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Classroom groups managed endpoints. DefaultGroupID applies when no
// schedule entry matches; OverrideGroupID, when set, beats everything.
type Classroom struct {
	ID              string
	Name            string
	DefaultGroupID  *string
	OverrideGroupID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Endpoint struct {
	ID          string
	ClassroomID string
	Hostname    string
	CreatedAt   time.Time
}

// Reservation is a recurring weekly window binding a whitelist group to a
// classroom. DayOfWeek runs 1=Monday..5=Friday; StartTime and EndTime are
// "HH:MM" 24h strings and form the half-open interval [start, end).
type Reservation struct {
	ID          string
	ClassroomID string
	TeacherID   string
	GroupID     string
	DayOfWeek   int
	StartTime   string
	EndTime     string
	Recurrence  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
