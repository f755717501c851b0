package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/realtime"
	"github.com/intermernet/afterlife/internal/rsvp"
)

type updateRSVPPayload struct {
	EventID    string `json:"event_id_input"`
	NewStatus  string `json:"new_status"`
	GuestEmail string `json:"guest_email,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
}

type rsvpChangedPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
}

// handleUpdateRSVPStatus is the RSVP procedure. The caller's own attendee
// row is created or updated with the new status; with guest_email set, a
// host records a guest's answer instead. Any status may follow any other.
func (s *Server) handleUpdateRSVPStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload updateRSVPPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	if payload.EventID == "" {
		s.errorJSON(w, errors.New("event_id_input is required"), http.StatusBadRequest)
		return
	}
	status, err := rsvp.ParseStatus(payload.NewStatus)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	event, err := s.db.GetEventByID(ctx, s.db.GetDB(), payload.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("event not found"), http.StatusBadRequest)
			return
		}
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	guestEmail := strings.TrimSpace(payload.GuestEmail)
	if guestEmail != "" {
		allowed, err := s.canManageEvent(ctx, event, userID)
		if err != nil {
			s.errorJSON(w, err, http.StatusInternalServerError)
			return
		}
		if !allowed {
			s.errorJSON(w, errors.New("only event managers can set a guest's RSVP"), http.StatusBadRequest)
			return
		}
		err = s.db.Write(ctx, func(tx *sql.Tx) error {
			return s.db.UpsertGuestStatus(ctx, tx, event.ID, guestEmail, strings.TrimSpace(payload.GuestName), status.String(), now)
		})
	} else {
		err = s.db.Write(ctx, func(tx *sql.Tx) error {
			return s.db.UpsertAttendeeStatus(ctx, tx, event.ID, userID, status.String(), now)
		})
	}
	if err != nil {
		log.Printf("ERROR: RSVP update on event %s by %s failed: %v", event.ID, userID, err)
		s.errorJSON(w, errors.New("failed to update RSVP status"), http.StatusBadRequest)
		return
	}

	if guestEmail == "" {
		// The caller's other open sessions refetch their attendee lists.
		s.broker.NotifyUser(userID, realtime.Message{
			Type:    realtime.TypeRSVPChanged,
			Payload: rsvpChangedPayload{EventID: event.ID, UserID: userID, Status: status.String()},
		})
		if event.CreatorID != userID {
			s.notifyRSVPChange(ctx, event, userID, status)
		}
	}

	s.writeJSON(w, http.StatusOK, envelope{"message": "RSVP status updated successfully"})
}

// notifyRSVPChange tells the creator about an attendee's answer. The creator
// holds a single RSVP notification per event, rewritten on every change.
func (s *Server) notifyRSVPChange(ctx context.Context, event *database.Event, userID string, status rsvp.Status) {
	sender := "A user"
	profile, err := s.db.GetProfileByID(ctx, s.db.GetDB(), userID)
	if err != nil {
		log.Printf("WARN: could not load profile %s for RSVP notification: %v", userID, err)
	} else if profile.FullName.Valid && profile.FullName.String != "" {
		sender = profile.FullName.String
	}

	label := status.String()
	if d, ok := rsvp.Lookup(status); ok {
		label = d.Label
	}

	s.pushNotification(ctx, database.Notification{
		RecipientID: event.CreatorID,
		SenderID:    sql.NullString{String: userID, Valid: true},
		Type:        database.NotifyRSVPChange,
		EntityType:  database.EntityEvent,
		EntityID:    event.ID,
		Message:     fmt.Sprintf("%s responded %s to '%s'.", sender, label, event.Title),
	})
}
