// Package client talks to the events server. It implements the attendee
// fetcher and the RSVP procedure used by the attendees package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/invitations"
	"github.com/intermernet/afterlife/internal/rsvp"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client is an authenticated API client. The session token is attached as a
// bearer token to every request.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the server at baseURL. An empty token gives an
// anonymous client, enough for Login.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}

	hc := http.DefaultClient
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}
	return &Client{baseURL: u, http: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// Profile is the signed-in user as returned by the server.
type Profile struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
}

// Login exchanges email and password for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, *Profile, error) {
	var out struct {
		Token string  `json:"token"`
		User  Profile `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/login", in, &out); err != nil {
		return "", nil, err
	}
	if out.Token == "" {
		return "", nil, errors.New("login response carried no token")
	}
	return out.Token, &out.User, nil
}

// Me returns the profile the session belongs to.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var out struct {
		User Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// FetchAttendees reads every attendee of the event with its profile.
func (c *Client) FetchAttendees(ctx context.Context, eventID string) ([]attendees.Attendee, error) {
	var out struct {
		Attendees []attendees.Attendee `json:"attendees"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/events/"+url.PathEscape(eventID)+"/attendees", nil, &out); err != nil {
		return nil, err
	}
	return out.Attendees, nil
}

// UpdateRSVPStatus calls the RSVP procedure for the session's user.
func (c *Client) UpdateRSVPStatus(ctx context.Context, eventID string, status rsvp.Status) error {
	in := map[string]string{"event_id_input": eventID, "new_status": status.String()}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/update-rsvp-status", in, nil)
}

// InviteToEvent runs the invitation fan-out and returns its summary.
func (c *Client) InviteToEvent(ctx context.Context, eventID string, emails []string) (string, error) {
	invitees := make([]invitations.Invitee, len(emails))
	for i, e := range emails {
		invitees[i] = invitations.Invitee{Email: e}
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	in := map[string]any{"event_id": eventID, "invitees": invitees}
	if err := c.do(ctx, http.MethodPost, "/functions/v1/handle-event-invitations", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// SendInvitations mails the invitation to each address and returns the
// outcome per address.
func (c *Client) SendInvitations(ctx context.Context, eventID string, emails []string) ([]invitations.Delivery, error) {
	var out struct {
		Results []invitations.Delivery `json:"results"`
	}
	in := map[string]any{"event_id": eventID, "emails": emails}
	if err := c.do(ctx, http.MethodPost, "/functions/v1/send-event-invitations", in, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
