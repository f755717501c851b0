// Package attendees is the client side of the event RSVP workflow: the
// attendee model as served by the API, a per-event cache, the attendee query,
// the RSVP mutation and the view models built from them.
package attendees

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/intermernet/afterlife/internal/rsvp"
)

// Profile is the public part of a user profile attached to an attendee.
type Profile struct {
	ID        string  `json:"id"`
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// DisplayName is the full name, or "User" when none is set.
func (p *Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return "User"
}

// Initials is the upper-cased first letter of the full name, or "U".
func (p *Profile) Initials() string {
	if p.FullName != nil && *p.FullName != "" {
		return strings.ToUpper(string([]rune(*p.FullName)[:1]))
	}
	return "U"
}

// Attendee is one user's, or one guest's, relationship to an event.
// Status is empty until the attendee answers. Profile is nil for guests and
// for users whose profile could not be joined.
type Attendee struct {
	ID          int64
	EventID     string
	UserID      *string
	GuestName   *string
	GuestEmail  *string
	Role        string
	Status      rsvp.Status
	RespondedAt *time.Time
	CreatedAt   time.Time
	Profile     *Profile
}

func (a Attendee) clone() Attendee {
	a.UserID = clonePtr(a.UserID)
	a.GuestName = clonePtr(a.GuestName)
	a.GuestEmail = clonePtr(a.GuestEmail)
	a.RespondedAt = clonePtr(a.RespondedAt)
	if a.Profile != nil {
		p := *a.Profile
		p.Username = clonePtr(p.Username)
		p.FullName = clonePtr(p.FullName)
		p.AvatarURL = clonePtr(p.AvatarURL)
		a.Profile = &p
	}
	return a
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IsGuest reports whether the attendee has no user account.
func (a *Attendee) IsGuest() bool {
	return a.UserID == nil
}

type wireAttendee struct {
	ID          int64           `json:"id"`
	EventID     string          `json:"event_id"`
	UserID      *string         `json:"user_id"`
	GuestName   *string         `json:"guest_name"`
	GuestEmail  *string         `json:"guest_email"`
	Role        string          `json:"role"`
	Status      *string         `json:"status"`
	RespondedAt *time.Time      `json:"responded_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Profiles    json.RawMessage `json:"profiles"`
}

// MarshalJSON writes the attendee in the API's row shape, with the profile
// under "profiles" as a single object or null.
func (a Attendee) MarshalJSON() ([]byte, error) {
	w := wireAttendee{
		ID:          a.ID,
		EventID:     a.EventID,
		UserID:      a.UserID,
		GuestName:   a.GuestName,
		GuestEmail:  a.GuestEmail,
		Role:        a.Role,
		RespondedAt: a.RespondedAt,
		CreatedAt:   a.CreatedAt,
		Profiles:    json.RawMessage("null"),
	}
	if a.Status != "" {
		s := string(a.Status)
		w.Status = &s
	}
	if a.Profile != nil {
		raw, err := json.Marshal(a.Profile)
		if err != nil {
			return nil, err
		}
		w.Profiles = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads an attendee row. A join can hand back the profile
// relation as an object, as an array or as null; it is flattened so Profile
// always ends up as one profile or nil.
func (a *Attendee) UnmarshalJSON(data []byte) error {
	var w wireAttendee
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	profile, err := flattenProfile(w.Profiles)
	if err != nil {
		return fmt.Errorf("attendee %d: %w", w.ID, err)
	}

	*a = Attendee{
		ID:          w.ID,
		EventID:     w.EventID,
		UserID:      w.UserID,
		GuestName:   w.GuestName,
		GuestEmail:  w.GuestEmail,
		Role:        w.Role,
		RespondedAt: w.RespondedAt,
		CreatedAt:   w.CreatedAt,
		Profile:     profile,
	}
	if w.Status != nil {
		a.Status = rsvp.Status(*w.Status)
	}
	return nil
}

func flattenProfile(raw json.RawMessage) (*Profile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var list []Profile
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	case '{':
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("profiles: unexpected JSON %s", raw)
	}
}
