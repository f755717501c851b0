package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/intermernet/afterlife/internal/config"
	"github.com/intermernet/afterlife/internal/database"
	"github.com/intermernet/afterlife/internal/email"
	"github.com/intermernet/afterlife/internal/invitations"
	"github.com/intermernet/afterlife/internal/realtime"
)

// Mailer sends the event mails. *email.EmailService is the production one.
type Mailer interface {
	SendEventInvitation(recipientEmail string, ev email.EventDetails) error
	SendEventCancellation(recipientEmail string, ev email.EventDetails) error
}

// Server holds everything the HTTP handlers depend on.
type Server struct {
	config     *config.Config
	db         *database.Service
	broker     *realtime.Broker
	mailer     Mailer
	fanOut     *invitations.FanOut
	dispatcher *invitations.Dispatcher

	googleOAuth *oauth2.Config
}

// NewServer wires the handlers to their dependencies. The invitation
// fan-out and the mail dispatcher both run against the same database.
func NewServer(cfg *config.Config, db *database.Service, broker *realtime.Broker, mailer Mailer) *Server {
	store := invitations.NewSQLStore(db)
	s := &Server{
		config:     cfg,
		db:         db,
		broker:     broker,
		mailer:     mailer,
		fanOut:     invitations.NewFanOut(store),
		dispatcher: invitations.NewDispatcher(store, mailer, cfg.EventURL),
	}
	if cfg.GoogleLoginEnabled() {
		s.googleOAuth = newGoogleOAuthConfig(cfg)
	}
	return s
}

// envelope wraps JSON responses, e.g. `envelope{"event": ev}`.
type envelope map[string]interface{}

// writeJSON sends data as indented JSON with the given status code and
// optional extra headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}, headers ...http.Header) {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		// Plain text, since the JSON encoder is what failed.
		http.Error(w, "Internal Server Error: Failed to marshal JSON", http.StatusInternalServerError)
		return
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}

// errorJSON sends `{"error": "message"}`, as a 500 unless a status is given.
func (s *Server) errorJSON(w http.ResponseWriter, err error, status ...int) {
	statusCode := http.StatusInternalServerError
	if len(status) > 0 {
		statusCode = status[0]
	}

	s.writeJSON(w, statusCode, envelope{"error": err.Error()})
}
