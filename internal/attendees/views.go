package attendees

import (
	"context"
	"errors"

	"github.com/intermernet/afterlife/internal/rsvp"
)

// InvitedLabel is shown for attendees who have not answered yet.
const InvitedLabel = "Invited"

// StatusBadge is the current user's own RSVP summary.
type StatusBadge struct {
	Name      string
	Username  string
	Initials  string
	AvatarURL string
	Status    rsvp.Status
	Display   rsvp.Display
}

// PersonalStatus builds the badge for the current user's attendee row.
// It returns nil when there is no row, no joined profile, or no status in
// the display table.
func PersonalStatus(a *Attendee) *StatusBadge {
	if a == nil || a.Profile == nil {
		return nil
	}
	d, ok := rsvp.Lookup(a.Status)
	if !ok {
		return nil
	}
	return &StatusBadge{
		Name:      a.Profile.DisplayName(),
		Username:  deref(a.Profile.Username),
		Initials:  a.Profile.Initials(),
		AvatarURL: deref(a.Profile.AvatarURL),
		Status:    a.Status,
		Display:   d,
	}
}

// Control is one button of the RSVP control bar.
type Control struct {
	Status   rsvp.Status
	Display  rsvp.Display
	Selected bool
}

// ControlBar lets the current user pick one of the three statuses.
type ControlBar struct {
	Name     string
	Initials string
	Current  *rsvp.Display
	Controls []Control

	mutation *Mutation
}

// NewControlBar builds the control bar for the current user's attendee row.
// It returns nil when the row or its profile is missing.
func NewControlBar(a *Attendee, m *Mutation) *ControlBar {
	if a == nil || a.Profile == nil {
		return nil
	}

	cb := &ControlBar{
		Name:     a.Profile.DisplayName(),
		Initials: a.Profile.Initials(),
		mutation: m,
	}
	if d, ok := rsvp.Lookup(a.Status); ok {
		cb.Current = &d
	}
	for _, s := range rsvp.All() {
		d, _ := rsvp.Lookup(s)
		cb.Controls = append(cb.Controls, Control{Status: s, Display: d, Selected: s == a.Status})
	}
	return cb
}

// ErrNoMutation is returned by Click on a control bar built without a mutation.
var ErrNoMutation = errors.New("control bar has no mutation")

// Click dispatches status through the mutation. Clicking the status that is
// already selected still sends it.
func (cb *ControlBar) Click(ctx context.Context, status rsvp.Status) error {
	if cb == nil || cb.mutation == nil {
		return ErrNoMutation
	}
	return cb.mutation.Update(ctx, status)
}

// RowView is one entry of an attendee list.
type RowView struct {
	AttendeeID int64
	Name       string
	Username   string
	Initials   string
	AvatarURL  string
	Role       string
	Label      string
	Tone       rsvp.Tone
	CanDelete  bool
}

// Row builds the list entry for a. It returns nil when the profile is
// missing. Unanswered or unknown statuses are labelled as invited.
func Row(a *Attendee, canDelete bool) *RowView {
	if a == nil || a.Profile == nil {
		return nil
	}

	r := &RowView{
		AttendeeID: a.ID,
		Name:       a.Profile.DisplayName(),
		Username:   deref(a.Profile.Username),
		Initials:   a.Profile.Initials(),
		AvatarURL:  deref(a.Profile.AvatarURL),
		Role:       a.Role,
		Label:      InvitedLabel,
		Tone:       rsvp.Neutral,
		CanDelete:  canDelete,
	}
	if d, ok := rsvp.Lookup(a.Status); ok {
		r.Label = d.Label
		r.Tone = d.Tone
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
