package email

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

// SMTPServerConfig holds all the necessary configuration for connecting to an SMTP server.
type SMTPServerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string // The "From" email address
}

// EventDetails is what the event mails say about the event.
type EventDetails struct {
	Title       string
	Description string
	StartTime   time.Time
	Location    string
	URL         string
}

// EmailService sends the event mails over SMTP.
type EmailService struct {
	config SMTPServerConfig
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailService creates a new service for sending emails.
func NewEmailService(config SMTPServerConfig) *EmailService {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailService{
		config: config,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// Configured reports whether an SMTP host and sender are set.
func (s *EmailService) Configured() bool {
	return s.config.Host != "" && s.config.Sender != ""
}

// SendEventInvitation mails an invitation to one event.
func (s *EmailService) SendEventInvitation(recipientEmail string, ev EventDetails) error {
	subject := fmt.Sprintf("You're invited: %s", ev.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi there,\n\nYou have been invited to %s.\n\n", ev.Title)
	if ev.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", ev.Description)
	}
	writeWhenWhere(&b, ev)
	fmt.Fprintf(&b, "\nLet the hosts know if you can make it:\n%s\n\nThe Afterlife Team", ev.URL)

	return s.deliver(recipientEmail, subject, b.String())
}

// SendEventCancellation tells an attendee that an event has been cancelled.
func (s *EmailService) SendEventCancellation(recipientEmail string, ev EventDetails) error {
	subject := fmt.Sprintf("Cancelled: %s", ev.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi there,\n\nUnfortunately %s has been cancelled.\n\n", ev.Title)
	writeWhenWhere(&b, ev)
	fmt.Fprintf(&b, "\nEvent page:\n%s\n\nThe Afterlife Team", ev.URL)

	return s.deliver(recipientEmail, subject, b.String())
}

func writeWhenWhere(b *strings.Builder, ev EventDetails) {
	if !ev.StartTime.IsZero() {
		fmt.Fprintf(b, "When: %s\n", ev.StartTime.UTC().Format("Monday, 2 January 2006 15:04 MST"))
	}
	if ev.Location != "" {
		fmt.Fprintf(b, "Where: %s\n", ev.Location)
	}
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// headerText folds line breaks out of v and encodes any non-printable or
// non-ASCII text as an RFC 2047 word, so v stays on a single header line.
func headerText(v string) string {
	return mime.QEncoding.Encode("utf-8", headerBreaks.Replace(v))
}

func (s *EmailService) deliver(recipientEmail, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("smtp error: no SMTP host or sender configured")
	}
	if strings.ContainsAny(recipientEmail, "\r\n") {
		return fmt.Errorf("smtp error: invalid recipient address %q", recipientEmail)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	message := []byte(
		"To: " + recipientEmail + "\r\n" +
			"From: " + s.config.Sender + "\r\n" +
			"Subject: " + headerText(subject) + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body + "\r\n")

	if err := s.send(addr, s.auth, s.config.Sender, []string{recipientEmail}, message); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	return nil
}
