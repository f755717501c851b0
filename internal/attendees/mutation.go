package attendees

import (
	"context"
	"fmt"
	"log"

	"github.com/intermernet/afterlife/internal/rsvp"
)

// Procedure is the remote RSVP procedure. The caller's identity travels with
// the session, so only the event and the new status are passed.
type Procedure interface {
	UpdateRSVPStatus(ctx context.Context, eventID string, status rsvp.Status) error
}

// Invalidator drops cached state for an event.
type Invalidator interface {
	Invalidate(eventID string)
}

// Mutation changes the current user's RSVP on one event.
//
// There is no in-flight guard: overlapping calls all reach the procedure and
// whichever lands last decides the stored status.
type Mutation struct {
	eventID string
	proc    Procedure
	cache   Invalidator
}

// NewMutation binds a mutation to eventID.
func NewMutation(eventID string, proc Procedure, cache Invalidator) *Mutation {
	return &Mutation{eventID: eventID, proc: proc, cache: cache}
}

// EventID returns the event the mutation is bound to.
func (m *Mutation) EventID() string { return m.eventID }

// Update sends status to the procedure. Values outside the closed set are
// rejected before any call. On success the event's cached attendee list is
// invalidated; on failure the error is logged and returned.
func (m *Mutation) Update(ctx context.Context, status rsvp.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", rsvp.ErrInvalidStatus, string(status))
	}
	if m.eventID == "" {
		return ErrMissingEventID
	}

	if err := m.proc.UpdateRSVPStatus(ctx, m.eventID, status); err != nil {
		log.Printf("ERROR: failed to update RSVP status for event %s: %v", m.eventID, err)
		return err
	}

	m.cache.Invalidate(m.eventID)
	return nil
}
