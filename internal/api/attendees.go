package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/intermernet/afterlife/internal/database"
)

// isCreatorOrAdmin reports whether userID created the event or holds the
// site-wide ADMIN role.
func (s *Server) isCreatorOrAdmin(ctx context.Context, event *database.Event, userID string) (bool, error) {
	if event.CreatorID == userID {
		return true, nil
	}
	profile, err := s.db.GetProfileByID(ctx, s.db.GetDB(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsAdmin(), nil
}

// canManageEvent reports whether userID may act for the event's hosts: the
// creator, a manager or co-manager attendee, or an ADMIN.
func (s *Server) canManageEvent(ctx context.Context, event *database.Event, userID string) (bool, error) {
	ok, err := s.isCreatorOrAdmin(ctx, event, userID)
	if err != nil || ok {
		return ok, err
	}
	attendee, err := s.db.GetAttendee(ctx, s.db.GetDB(), event.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return attendee.IsManager(), nil
}

// handleGetEventAttendees is the attendee read: every attendee row of the
// event with the public profile nested under "profiles".
func (s *Server) handleGetEventAttendees(w http.ResponseWriter, r *http.Request) {
	event, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	rows, err := s.db.GetAttendeesByEventID(r.Context(), s.db.GetDB(), event.ID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"attendees": toAttendeeList(rows)})
}

// handleUpdateAttendeeRole promotes an attendee to co-manager or demotes a
// co-manager back to participant. The creator's own role is fixed.
func (s *Server) handleUpdateAttendeeRole(w http.ResponseWriter, r *http.Request) {
	actorID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	event, ok := s.loadEvent(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "userID")

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	if payload.Role != database.AttendeeCoManager && payload.Role != database.AttendeeParticipant {
		s.errorJSON(w, fmt.Errorf("role must be %q or %q", database.AttendeeCoManager, database.AttendeeParticipant), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	allowed, err := s.isCreatorOrAdmin(ctx, event, actorID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if !allowed {
		s.errorJSON(w, errors.New("forbidden: only the event creator can change roles"), http.StatusForbidden)
		return
	}
	if targetID == event.CreatorID {
		s.errorJSON(w, errors.New("the event creator's role cannot be changed"), http.StatusBadRequest)
		return
	}

	target, err := s.db.GetAttendee(ctx, s.db.GetDB(), event.ID, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("user is not an attendee of this event"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if target.Role == payload.Role {
		s.writeJSON(w, http.StatusOK, envelope{"message": "Role unchanged"})
		return
	}

	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		if err := s.db.UpdateAttendeeRole(ctx, tx, event.ID, targetID, payload.Role); err != nil {
			return err
		}
		return s.db.CreateAuditLog(ctx, tx, database.AuditLog{
			Action:      "UPDATE_ATTENDEE_ROLE",
			PerformedBy: actorID,
			TargetType:  "EVENT_ATTENDEE",
			TargetID:    targetID,
			Description: fmt.Sprintf("role on event %s set to %s", event.ID, payload.Role),
		})
	})
	if err != nil {
		s.errorJSON(w, errors.New("failed to update role"), http.StatusInternalServerError)
		return
	}

	n := database.Notification{
		RecipientID: targetID,
		SenderID:    sql.NullString{String: actorID, Valid: true},
		Type:        database.NotifyRolePromotion,
		EntityType:  database.EntityEvent,
		EntityID:    event.ID,
		Message:     fmt.Sprintf("You are now a co-manager of '%s'.", event.Title),
	}
	if payload.Role == database.AttendeeParticipant {
		n.Type = database.NotifyRoleDemotion
		n.Message = fmt.Sprintf("You are no longer a co-manager of '%s'.", event.Title)
	}
	s.pushNotification(ctx, n)

	s.writeJSON(w, http.StatusOK, envelope{"message": "Role updated successfully"})
}

// handleGetEventInvitations lists the invitations of an event to its hosts.
func (s *Server) handleGetEventInvitations(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	event, ok := s.loadEvent(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	allowed, err := s.canManageEvent(ctx, event, userID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	if !allowed {
		s.errorJSON(w, errors.New("forbidden: you do not manage this event"), http.StatusForbidden)
		return
	}

	rows, err := s.db.GetInvitationsByEventID(ctx, s.db.GetDB(), event.ID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"invitations": toInvitationResponseList(rows)})
}
