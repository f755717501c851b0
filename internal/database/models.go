package database

import (
	"database/sql"
	"time"
)

// Profile represents a record in the 'profiles' table. Password hashes are
// NULL for accounts created through Google sign-in.
type Profile struct {
	ID           string
	Email        string
	Username     sql.NullString
	FullName     sql.NullString
	AvatarURL    sql.NullString
	PasswordHash sql.NullString
	Role         string
	CreatedAt    time.Time
}

// IsAdmin reports whether the profile carries the site-wide ADMIN role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Profile roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Event represents a record in the 'events' table.
type Event struct {
	ID           string
	Title        string
	Description  string
	StartTime    time.Time
	EndTime      sql.NullTime
	LocationText sql.NullString
	Status       string
	CreatorID    string
	CreatedAt    time.Time
}

// Event lifecycle values.
const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventCancelled = "cancelled"
)

// Attendee roles. Role is free-form in the store; these are the values the
// server writes itself.
const (
	AttendeeManager     = "manager"
	AttendeeCoManager   = "co_manager"
	AttendeeParticipant = "participant"
)

// Attendee represents a record in the 'event_attendees' table, joined with
// the public fields of the attendee's profile when one exists.
type Attendee struct {
	ID          int64
	EventID     string
	UserID      sql.NullString
	GuestName   sql.NullString
	GuestEmail  sql.NullString
	Role        string
	Status      sql.NullString
	RespondedAt sql.NullTime
	CreatedAt   time.Time

	// Populated by the LEFT JOIN on profiles; ProfileID is NULL for guests
	// and for rows whose profile is gone.
	ProfileID       sql.NullString
	ProfileUsername sql.NullString
	ProfileFullName sql.NullString
	ProfileAvatar   sql.NullString
	ProfileEmail    sql.NullString
}

// IsManager reports whether the attendee can manage the event.
func (a *Attendee) IsManager() bool {
	return a.Role == AttendeeManager || a.Role == AttendeeCoManager
}

// Invitation represents a record in the 'event_invitations' table.
type Invitation struct {
	ID        string
	EventID   string
	Email     string
	Status    string
	CreatedAt time.Time
}

// EmailLog represents a record in the 'email_logs' table.
type EmailLog struct {
	ID             int64
	EventID        string
	RecipientEmail string
	MailType       string
	Status         string
	ErrorMessage   sql.NullString
	CreatedAt      time.Time
}

// Email log values.
const (
	MailEventInvitation   = "EVENT_INVITATION"
	MailEventCancellation = "EVENT_CANCELLATION"

	MailSent   = "sent"
	MailFailed = "failed"
)

// Notification represents a record in the 'notifications' table.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    sql.NullString
	Type        string
	EntityType  string
	EntityID    string
	Message     string
	IsRead      bool
	CreatedAt   time.Time
}

// Notification types.
const (
	NotifyRSVPChange     = "EVENT_RSVP_CHANGE"
	NotifyEventCancelled = "EVENT_CANCELLED"
	NotifyRolePromotion  = "ROLE_PROMOTION"
	NotifyRoleDemotion   = "ROLE_DEMOTION"

	EntityEvent = "EVENT"
)

// AuditLog represents a record in the 'audit_logs' table.
type AuditLog struct {
	Action      string
	PerformedBy string
	TargetType  string
	TargetID    string
	Description string
}
