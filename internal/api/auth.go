package api

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleOauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/intermernet/afterlife/internal/auth"
	"github.com/intermernet/afterlife/internal/config"
	"github.com/intermernet/afterlife/internal/database"
)

// --- Structs for JSON Payloads ---

type registerUserPayload struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUserPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- OAUTH LOGIC ---

func newGoogleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleOauthClientID,
		ClientSecret: cfg.GoogleOauthClientSecret,
		RedirectURL:  cfg.GoogleOauthRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// generateStateOauthCookie sets a random CSRF state as an HttpOnly cookie.
func generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
	})
	return state, nil
}

// handleGoogleLogin redirects the user to Google's consent page.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.googleOAuth == nil {
		s.errorJSON(w, errors.New("google login is not configured"), http.StatusNotFound)
		return
	}
	state, err := generateStateOauthCookie(w)
	if err != nil {
		s.errorJSON(w, errors.New("could not start google login"), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, s.googleOAuth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleGoogleCallback finishes the OAuth flow: it exchanges the code, finds
// or creates the profile for the Google account and hands a session token
// to the web app.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.googleOAuth == nil {
		s.errorJSON(w, errors.New("google login is not configured"), http.StatusNotFound)
		return
	}

	oauthState, err := r.Cookie("oauthstate")
	if err != nil || r.FormValue("state") != oauthState.Value {
		s.errorJSON(w, errors.New("invalid oauth state"), http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	token, err := s.googleOAuth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to exchange code for token: %w", err), http.StatusInternalServerError)
		return
	}

	oauth2Service, err := googleOauth2.NewService(ctx, option.WithTokenSource(s.googleOAuth.TokenSource(ctx, token)))
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to create oauth service: %w", err), http.StatusInternalServerError)
		return
	}
	userInfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		s.errorJSON(w, fmt.Errorf("failed to get user info: %w", err), http.StatusInternalServerError)
		return
	}

	profile, err := s.db.GetProfileByEmail(ctx, s.db.GetDB(), userInfo.Email)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.Write(ctx, func(tx *sql.Tx) error {
			var createErr error
			// No password for Google-only accounts.
			profile, createErr = s.db.CreateProfile(ctx, tx, userInfo.Email, "", userInfo.Name, "")
			if createErr != nil {
				return createErr
			}
			if userInfo.Picture != "" {
				pic := userInfo.Picture
				if createErr = s.db.UpdateProfile(ctx, tx, profile.ID, database.ProfileUpdate{AvatarURL: &pic}); createErr != nil {
					return createErr
				}
				profile.AvatarURL = sql.NullString{String: pic, Valid: true}
			}
			return nil
		})
	}
	if err != nil {
		log.Printf("ERROR: google sign-in for %s failed: %v", userInfo.Email, err)
		s.errorJSON(w, errors.New("failed to sign in"), http.StatusInternalServerError)
		return
	}

	appToken, err := auth.GenerateJWT(profile.ID, s.config.JwtSecret)
	if err != nil {
		s.errorJSON(w, errors.New("could not generate token"), http.StatusInternalServerError)
		return
	}

	redirectURL := s.config.ParsedAppURL.JoinPath("auth", "callback")
	redirectURL.RawQuery = url.Values{"token": {appToken}}.Encode()
	http.Redirect(w, r, redirectURL.String(), http.StatusTemporaryRedirect)
}

// --- PASSWORD-BASED AUTH ---

// handleRegisterUser creates an email/password account.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var payload registerUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)

	if payload.Email == "" || payload.Password == "" || payload.Username == "" {
		s.errorJSON(w, errors.New("username, email, and password are required"), http.StatusBadRequest)
		return
	}
	if len(payload.Password) < auth.MinPasswordLength {
		s.errorJSON(w, fmt.Errorf("password must be at least %d characters long", auth.MinPasswordLength), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	_, err := s.db.GetProfileByEmail(ctx, s.db.GetDB(), payload.Email)
	if err == nil {
		s.errorJSON(w, errors.New("a user with this email address already exists"), http.StatusConflict)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}

	hashedPassword, err := auth.HashPassword(payload.Password)
	if err != nil {
		s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}

	var profile *database.Profile
	err = s.db.Write(ctx, func(tx *sql.Tx) error {
		var err error
		profile, err = s.db.CreateProfile(ctx, tx, payload.Email, payload.Username, payload.FullName, hashedPassword)
		return err
	})
	if err != nil {
		log.Printf("ERROR: could not create profile for %s: %v", payload.Email, err)
		s.errorJSON(w, errors.New("could not create user"), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, envelope{"message": "user registered successfully", "user": toProfileResponse(profile)})
}

// handleLoginUser authenticates an email/password account and returns a
// session token. Hashes made with older parameters are upgraded in place.
func (s *Server) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var payload loginUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorJSON(w, errors.New("bad request: could not decode JSON"), http.StatusBadRequest)
		return
	}

	if payload.Email == "" || payload.Password == "" {
		s.errorJSON(w, errors.New("email and password are required"), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, err := s.db.GetProfileByEmail(ctx, s.db.GetDB(), strings.TrimSpace(payload.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
			return
		}
		s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
		return
	}

	if !profile.PasswordHash.Valid || profile.PasswordHash.String == "" {
		s.errorJSON(w, errors.New("please log in using the method you signed up with"), http.StatusUnauthorized)
		return
	}

	if !auth.CheckPasswordHash(payload.Password, profile.PasswordHash.String) {
		s.errorJSON(w, errors.New("invalid email or password"), http.StatusUnauthorized)
		return
	}

	if auth.NeedsRehash(profile.PasswordHash.String) {
		if hashed, err := auth.HashPassword(payload.Password); err == nil {
			err = s.db.Write(ctx, func(tx *sql.Tx) error {
				return s.db.UpdatePasswordHash(ctx, tx, profile.ID, hashed)
			})
			if err != nil {
				log.Printf("WARN: could not upgrade password hash for %s: %v", profile.ID, err)
			}
		}
	}

	tokenString, err := auth.GenerateJWT(profile.ID, s.config.JwtSecret)
	if err != nil {
		s.errorJSON(w, errors.New("could not generate token"), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		"token": tokenString,
		"user":  toProfileResponse(profile),
	})
}
