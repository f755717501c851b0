package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetMyNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	rows, err := s.db.GetNotificationsByRecipient(r.Context(), s.db.GetDB(), userID)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"notifications": toNotificationResponseList(rows)})
}

// handleMarkNotificationRead only touches the caller's own notifications.
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		return s.db.MarkNotificationRead(ctx, tx, chi.URLParam(r, "notificationID"), userID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("notification not found"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"message": "Notification marked as read"})
}
