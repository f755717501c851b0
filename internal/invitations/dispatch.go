package invitations

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/email"
)

// Delivery outcomes.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Mailer sends the invitation mail.
type Mailer interface {
	SendEventInvitation(recipientEmail string, ev email.EventDetails) error
}

// DeliveryLog is the persistence the dispatcher needs.
type DeliveryLog interface {
	Event(ctx context.Context, eventID string) (*database.Event, error)
	// SentBefore reports a successful invitation mail to the address.
	SentBefore(ctx context.Context, eventID, email string) (bool, error)
	RecordDelivery(ctx context.Context, eventID, email string, sendErr error) error
}

// Delivery is the outcome for one address.
type Delivery struct {
	Email   string `json:"email" yaml:"email"`
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Dispatcher mails invitations and records every attempt.
type Dispatcher struct {
	deliveries DeliveryLog
	mailer     Mailer
	eventURL   func(eventID string) string
}

func NewDispatcher(deliveries DeliveryLog, mailer Mailer, eventURL func(string) string) *Dispatcher {
	return &Dispatcher{deliveries: deliveries, mailer: mailer, eventURL: eventURL}
}

// Send mails the invitation for eventID to each address in order. Addresses
// that already received it are skipped; every attempt, failed or not, is
// written to the delivery log.
func (d *Dispatcher) Send(ctx context.Context, eventID string, emails []string) ([]Delivery, error) {
	if eventID == "" {
		return nil, ErrMissingEventID
	}
	if len(emails) == 0 {
		return nil, ErrNoInvitees
	}

	event, err := d.deliveries.Event(ctx, eventID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("ERROR: could not load event %s: %v", eventID, err)
		}
		return nil, ErrEventNotFound
	}

	details := email.EventDetails{
		Title:       event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		Location:    event.LocationText.String,
		URL:         d.eventURL(event.ID),
	}

	results := make([]Delivery, 0, len(emails))
	for _, raw := range emails {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}

		sent, err := d.deliveries.SentBefore(ctx, eventID, addr)
		if err != nil {
			log.Printf("WARN: delivery lookup failed for %s on event %s: %v", addr, eventID, err)
		}
		if sent {
			results = append(results, Delivery{Email: addr, Status: DeliverySkipped, Message: "already sent"})
			continue
		}

		sendErr := d.mailer.SendEventInvitation(addr, details)
		if err := d.deliveries.RecordDelivery(ctx, eventID, addr, sendErr); err != nil {
			log.Printf("ERROR: could not record delivery to %s for event %s: %v", addr, eventID, err)
		}

		if sendErr != nil {
			log.Printf("WARN: invitation mail to %s for event %s failed: %v", addr, eventID, sendErr)
			results = append(results, Delivery{Email: addr, Status: DeliveryFailed, Message: sendErr.Error()})
			continue
		}
		results = append(results, Delivery{Email: addr, Status: DeliverySent})
	}
	return results, nil
}
