package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/intermernet/afterlife/internal/database"
)

// handleGetMyProfile returns the signed-in user's profile.
func (s *Server) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	profile, err := s.db.GetProfileByID(r.Context(), s.db.GetDB(), userID)
	if err != nil {
		// A valid token for a profile that no longer exists.
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"user": toProfileResponse(profile)})
}

// handleUpdateMyProfile edits the public profile fields shown next to the
// user's RSVPs. Absent fields are left alone; empty strings clear them.
func (s *Server) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusInternalServerError)
		return
	}

	var payload struct {
		Username  *string `json:"username"`
		FullName  *string `json:"full_name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	if payload.Username == nil && payload.FullName == nil && payload.AvatarURL == nil {
		s.errorJSON(w, errors.New("no changes provided"), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var profile *database.Profile
	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		update := database.ProfileUpdate{Username: payload.Username, FullName: payload.FullName, AvatarURL: payload.AvatarURL}
		if err := s.db.UpdateProfile(ctx, tx, userID, update); err != nil {
			return err
		}
		var err error
		profile, err = s.db.GetProfileByID(ctx, tx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("user not found"), http.StatusNotFound)
			return
		}
		s.errorJSON(w, errors.New("failed to update profile"), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{"user": toProfileResponse(profile)})
}
