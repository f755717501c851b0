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
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/email"
	"github.com/intermernet/afterlife/internal/realtime"
)

type createEventPayload struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	LocationText string     `json:"location_text"`
	Status       string     `json:"status"`
}

func validEventStatus(status string) bool {
	switch status {
	case database.EventDraft, database.EventPublished, database.EventCancelled:
		return true
	}
	return false
}

// loadEvent fetches the {eventID} of the request, answering 404 itself when
// the event does not exist.
func (s *Server) loadEvent(w http.ResponseWriter, r *http.Request) (*database.Event, bool) {
	event, err := s.db.GetEventByID(r.Context(), s.db.GetDB(), chi.URLParam(r, "eventID"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("event not found"), http.StatusNotFound)
			return nil, false
		}
		s.errorJSON(w, err, http.StatusInternalServerError)
		return nil, false
	}
	return event, true
}

// handleCreateEvent creates an event with the caller as its managing attendee.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	creatorID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload createEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	payload.Title = strings.TrimSpace(payload.Title)

	if payload.Title == "" || payload.StartTime.IsZero() {
		s.errorJSON(w, errors.New("title and start_time are required"), http.StatusBadRequest)
		return
	}
	if strings.ContainsFunc(payload.Title, unicode.IsControl) {
		s.errorJSON(w, errors.New("title must not contain control characters"), http.StatusBadRequest)
		return
	}
	if payload.EndTime != nil && payload.EndTime.Before(payload.StartTime) {
		s.errorJSON(w, errors.New("end_time must not be before start_time"), http.StatusBadRequest)
		return
	}
	if payload.Status != "" && !validEventStatus(payload.Status) {
		s.errorJSON(w, fmt.Errorf("invalid status %q", payload.Status), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var event *database.Event
	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		var err error
		event, err = s.db.CreateEvent(ctx, tx, database.NewEvent{
			Title:        payload.Title,
			Description:  payload.Description,
			StartTime:    payload.StartTime.UTC(),
			EndTime:      payload.EndTime,
			LocationText: payload.LocationText,
			Status:       payload.Status,
			CreatorID:    creatorID,
		})
		return err
	})
	if err != nil {
		log.Printf("ERROR: could not create event for %s: %v", creatorID, err)
		s.errorJSON(w, errors.New("could not create event"), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, envelope{"event": toEventResponse(event)})
}

// handleGetMyEvents lists the events the caller created or attends.
func (s *Server) handleGetMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	events, err := s.db.GetEventsForProfile(r.Context(), s.db.GetDB(), userID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"events": toEventResponseList(events)})
}

func (s *Server) handleGetEventDetails(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"event": toEventResponse(event)})
}

// handleUpdateEventStatus moves an event between draft, published and
// cancelled. Only the creator or an ADMIN may do so. Cancelling tells every
// attendee who has not declined, by notification and by mail.
func (s *Server) handleUpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	event, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	if !validEventStatus(payload.Status) {
		s.errorJSON(w, fmt.Errorf("invalid status %q", payload.Status), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	allowed, err := s.isCreatorOrAdmin(ctx, event, userID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if !allowed {
		s.errorJSON(w, errors.New("forbidden: only the event creator can change its status"), http.StatusForbidden)
		return
	}

	previous := event.Status
	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		if err := s.db.UpdateEventStatus(ctx, tx, event.ID, payload.Status); err != nil {
			return err
		}
		return s.db.CreateAuditLog(ctx, tx, database.AuditLog{
			Action:      "UPDATE_EVENT_STATUS",
			PerformedBy: userID,
			TargetType:  database.EntityEvent,
			TargetID:    event.ID,
			Description: fmt.Sprintf("status %s -> %s", previous, payload.Status),
		})
	})
	if err != nil {
		s.errorJSON(w, errors.New("failed to update event status"), http.StatusInternalServerError)
		return
	}
	event.Status = payload.Status

	if payload.Status == database.EventCancelled && previous != database.EventCancelled {
		s.notifyCancellation(ctx, event, userID)
	}

	s.writeJSON(w, http.StatusOK, envelope{"event": toEventResponse(event)})
}

// notifyCancellation sends the cancellation notice to each attendee with an
// account who had not declined. Failures are logged per attendee.
func (s *Server) notifyCancellation(ctx context.Context, event *database.Event, actorID string) {
	recipients, err := s.db.GetNotifiableAttendees(ctx, s.db.GetDB(), event.ID)
	if err != nil {
		log.Printf("ERROR: could not load attendees of cancelled event %s: %v", event.ID, err)
		return
	}

	details := email.EventDetails{
		Title:     event.Title,
		StartTime: event.StartTime,
		Location:  event.LocationText.String,
		URL:       s.config.EventURL(event.ID),
	}

	for _, a := range recipients {
		recipientID := a.UserID.String
		if recipientID == actorID {
			continue
		}

		s.pushNotification(ctx, database.Notification{
			RecipientID: recipientID,
			SenderID:    sql.NullString{String: actorID, Valid: true},
			Type:        database.NotifyEventCancelled,
			EntityType:  database.EntityEvent,
			EntityID:    event.ID,
			Message:     fmt.Sprintf("'%s' has been cancelled.", event.Title),
		})

		if !a.ProfileEmail.Valid {
			continue
		}
		sendErr := s.mailer.SendEventCancellation(a.ProfileEmail.String, details)
		entry := database.EmailLog{
			EventID:        event.ID,
			RecipientEmail: a.ProfileEmail.String,
			MailType:       database.MailEventCancellation,
			Status:         database.MailSent,
		}
		if sendErr != nil {
			log.Printf("WARN: cancellation mail to %s for event %s failed: %v", a.ProfileEmail.String, event.ID, sendErr)
			entry.Status = database.MailFailed
			entry.ErrorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
		}
		err := s.db.Write(ctx, func(tx *sql.Tx) error {
			return s.db.CreateEmailLog(ctx, tx, entry)
		})
		if err != nil {
			log.Printf("ERROR: could not log cancellation mail for event %s: %v", event.ID, err)
		}
	}
}

// pushNotification stores n and, if the recipient is connected, pushes it
// over SSE. Failures are only logged.
func (s *Server) pushNotification(ctx context.Context, n database.Notification) {
	var stored *database.Notification
	err := s.db.Write(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = s.db.UpsertNotification(ctx, tx, n)
		return err
	})
	if err != nil {
		log.Printf("ERROR: could not store %s notification for %s: %v", n.Type, n.RecipientID, err)
		return
	}
	s.broker.NotifyUser(n.RecipientID, realtime.Message{
		Type:    realtime.TypeNotification,
		Payload: toNotificationResponse(stored),
	})
}
