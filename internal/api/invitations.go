package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/intermernet/afterlife/internal/invitations"
)

// Error messages of the /functions endpoints.
const (
	msgMissingInvitees = "Missing event ID or invitees"
	msgMissingParams   = "Missing required parameters"
	msgEventNotFound   = "Event not found or cannot be accessed."
)

type inviteToEventPayload struct {
	EventID  string                `json:"event_id"`
	Invitees []invitations.Invitee `json:"invitees"`
}

// handleEventInvitations is the invitation fan-out. Every failure of the
// call as a whole is a 500 carrying the reason.
func (s *Server) handleEventInvitations(w http.ResponseWriter, r *http.Request) {
	var payload inviteToEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, envelope{"error": msgMissingInvitees})
		return
	}

	res, err := s.fanOut.Invite(r.Context(), payload.EventID, payload.Invitees)
	switch {
	case errors.Is(err, invitations.ErrMissingEventID), errors.Is(err, invitations.ErrNoInvitees):
		s.writeJSON(w, http.StatusInternalServerError, envelope{"error": msgMissingInvitees})
		return
	case errors.Is(err, invitations.ErrEventNotFound):
		s.writeJSON(w, http.StatusInternalServerError, envelope{"error": msgEventNotFound})
		return
	case err != nil:
		s.errorJSON(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"success": true, "message": res.Message()})
}

type sendInvitationsPayload struct {
	EventID string   `json:"event_id"`
	Emails  []string `json:"emails"`
}

// handleSendEventInvitations mails the invitation to each address that has
// not received it yet and reports the outcome per address.
func (s *Server) handleSendEventInvitations(w http.ResponseWriter, r *http.Request) {
	var payload sendInvitationsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, envelope{"error": msgMissingParams})
		return
	}

	results, err := s.dispatcher.Send(r.Context(), payload.EventID, payload.Emails)
	switch {
	case errors.Is(err, invitations.ErrMissingEventID), errors.Is(err, invitations.ErrNoInvitees):
		s.writeJSON(w, http.StatusBadRequest, envelope{"error": msgMissingParams})
		return
	case errors.Is(err, invitations.ErrEventNotFound):
		s.writeJSON(w, http.StatusNotFound, envelope{"error": msgEventNotFound})
		return
	case err != nil:
		s.errorJSON(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"success": true, "results": results})
}
