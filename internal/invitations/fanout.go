// Package invitations creates event invitations for batches of email
// addresses and mails them, sending to each address at most once.
package invitations

import (
	"context"
	"errors"
	"log"
	"strings"
)

var (
	ErrMissingEventID = errors.New("missing event_id")
	ErrNoInvitees     = errors.New("invitees must be a non-empty list")
	ErrEventNotFound  = errors.New("event not found or cannot be accessed")
)

// Invitee is one candidate address. Entries without an email are skipped.
type Invitee struct {
	Email string `json:"email"`
}

// Store is the persistence the fan-out needs.
type Store interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
	InvitationExists(ctx context.Context, eventID, email string) (bool, error)
	// EmailLogExists reports any logged invitation mail for the address.
	EmailLogExists(ctx context.Context, eventID, email string) (bool, error)
	CreateInvitation(ctx context.Context, eventID, email string) error
}

// Result lists the addresses a fan-out invited and the ones it skipped
// because they were already covered, each in input order.
type Result struct {
	Invited     []string `json:"invited" yaml:"invited"`
	AlreadySent []string `json:"already_sent" yaml:"already_sent"`
}

// Message is the human-readable summary returned to the caller.
func (r *Result) Message() string {
	msg := "Invitations processed successfully."
	if len(r.Invited) > 0 {
		msg += " Sent to: " + strings.Join(r.Invited, ", ") + "."
	}
	if len(r.AlreadySent) > 0 {
		msg += " Already sent to/exist for: " + strings.Join(r.AlreadySent, ", ") + "."
	}
	return msg
}

// FanOut creates invitation rows for a batch of invitees.
type FanOut struct {
	store Store
}

func NewFanOut(store Store) *FanOut {
	return &FanOut{store: store}
}

// Invite processes invitees one at a time, in order. An address is skipped
// as already sent when it has an invitation row or an invitation mail in the
// delivery log; otherwise an 'invited' row is inserted. Per-address failures
// are logged and absorbed. Only a missing event id, an empty invitee list or
// an unknown event fail the whole call, and they do so before any write.
func (f *FanOut) Invite(ctx context.Context, eventID string, invitees []Invitee) (*Result, error) {
	if eventID == "" {
		return nil, ErrMissingEventID
	}
	if len(invitees) == 0 {
		return nil, ErrNoInvitees
	}

	exists, err := f.store.EventExists(ctx, eventID)
	if err != nil {
		log.Printf("ERROR: could not look up event %s: %v", eventID, err)
		return nil, ErrEventNotFound
	}
	if !exists {
		return nil, ErrEventNotFound
	}

	res := &Result{}
	for _, inv := range invitees {
		addr := strings.TrimSpace(inv.Email)
		if addr == "" {
			continue
		}

		invited, err := f.store.InvitationExists(ctx, eventID, addr)
		if err != nil {
			log.Printf("WARN: invitation lookup failed for %s on event %s: %v", addr, eventID, err)
			continue
		}
		if invited {
			res.AlreadySent = append(res.AlreadySent, addr)
			continue
		}

		mailed, err := f.store.EmailLogExists(ctx, eventID, addr)
		if err != nil {
			log.Printf("WARN: email log lookup failed for %s on event %s: %v", addr, eventID, err)
			continue
		}
		if mailed {
			res.AlreadySent = append(res.AlreadySent, addr)
			continue
		}

		if err := f.store.CreateInvitation(ctx, eventID, addr); err != nil {
			log.Printf("WARN: could not create invitation for %s on event %s: %v", addr, eventID, err)
			continue
		}
		res.Invited = append(res.Invited, addr)
	}

	log.Printf("INFO: invitations for event %s: %d new, %d already covered", eventID, len(res.Invited), len(res.AlreadySent))
	return res, nil
}
