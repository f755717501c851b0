package api

import (
	"database/sql"
	"time"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/rsvp"
)

// ProfileResponse is the DTO for the signed-in user's own profile.
type ProfileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func toProfileResponse(p *database.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Email:     p.Email,
		Username:  nullableString(p.Username),
		FullName:  nullableString(p.FullName),
		AvatarURL: nullableString(p.AvatarURL),
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
	}
}

// EventResponse is the DTO for an event.
type EventResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	LocationText *string    `json:"location_text"`
	Status       string     `json:"status"`
	CreatorID    string     `json:"creator_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toEventResponse(e *database.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		StartTime:    e.StartTime,
		EndTime:      nullableTime(e.EndTime),
		LocationText: nullableString(e.LocationText),
		Status:       e.Status,
		CreatorID:    e.CreatorID,
		CreatedAt:    e.CreatedAt,
	}
}

func toEventResponseList(events []*database.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}
	return out
}

// toAttendee maps a joined attendee row onto the wire model shared with the
// client, so the profile relation is always one object or null. The profile
// email is never exposed.
func toAttendee(a *database.Attendee) attendees.Attendee {
	out := attendees.Attendee{
		ID:          a.ID,
		EventID:     a.EventID,
		UserID:      nullableString(a.UserID),
		GuestName:   nullableString(a.GuestName),
		GuestEmail:  nullableString(a.GuestEmail),
		Role:        a.Role,
		RespondedAt: nullableTime(a.RespondedAt),
		CreatedAt:   a.CreatedAt,
	}
	if a.Status.Valid {
		out.Status = rsvp.Status(a.Status.String)
	}
	if a.ProfileID.Valid {
		out.Profile = &attendees.Profile{
			ID:        a.ProfileID.String,
			Username:  nullableString(a.ProfileUsername),
			FullName:  nullableString(a.ProfileFullName),
			AvatarURL: nullableString(a.ProfileAvatar),
		}
	}
	return out
}

func toAttendeeList(rows []*database.Attendee) []attendees.Attendee {
	out := make([]attendees.Attendee, len(rows))
	for i, a := range rows {
		out[i] = toAttendee(a)
	}
	return out
}

// InvitationResponse is the DTO for an invitation row.
type InvitationResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toInvitationResponseList(rows []*database.Invitation) []InvitationResponse {
	out := make([]InvitationResponse, len(rows))
	for i, inv := range rows {
		out[i] = InvitationResponse{
			ID:        inv.ID,
			EventID:   inv.EventID,
			Email:     inv.Email,
			Status:    inv.Status,
			CreatedAt: inv.CreatedAt,
		}
	}
	return out
}

// NotificationResponse is the DTO for a notification, also used as the SSE
// payload.
type NotificationResponse struct {
	ID         string    `json:"id"`
	SenderID   *string   `json:"sender_id"`
	Type       string    `json:"type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func toNotificationResponse(n *database.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		SenderID:   nullableString(n.SenderID),
		Type:       n.Type,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Message:    n.Message,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
}

func toNotificationResponseList(rows []*database.Notification) []NotificationResponse {
	out := make([]NotificationResponse, len(rows))
	for i, n := range rows {
		out[i] = toNotificationResponse(n)
	}
	return out
}
