package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/rsvp"
)

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url", "")
	assert.Error(t, err)
}

func TestFetchAttendeesFlattensArrayProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/e1/attendees", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"attendees":[
			{"id":1,"event_id":"e1","user_id":"u1","role":"manager","status":"going","created_at":"2024-05-01T10:00:00Z",
			 "profiles":[{"id":"u1","username":"ada","full_name":"Ada","avatar_url":null}]},
			{"id":2,"event_id":"e1","user_id":"u2","role":"participant","status":null,"created_at":"2024-05-01T10:00:00Z",
			 "profiles":{"id":"u2","username":"bob","full_name":null,"avatar_url":null}}
		]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	list, err := c.FetchAttendees(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		require.NotNil(t, a.Profile)
	}
	assert.Equal(t, "ada", *list[0].Profile.Username)
	assert.Equal(t, rsvp.Status(""), list[1].Status)
}

func TestUpdateRSVPStatusSendsProcedureArguments(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/update-rsvp-status", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message":"RSVP status updated successfully"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	require.NoError(t, c.UpdateRSVPStatus(context.Background(), "e1", rsvp.Maybe))
	assert.Equal(t, map[string]string{"event_id_input": "e1", "new_status": "maybe"}, got)
}

func TestAPIErrorsCarryServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"event not found"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	err = c.UpdateRSVPStatus(context.Background(), "missing", rsvp.Going)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "event not found", apiErr.Message)
}

func TestInviteAndSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/handle-event-invitations", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			EventID  string              `json:"event_id"`
			Invitees []map[string]string `json:"invitees"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "e1", in.EventID)
		assert.Equal(t, []map[string]string{{"email": "a@x.com"}}, in.Invitees)
		w.Write([]byte(`{"success":true,"message":"Invitations processed successfully. Sent to: a@x.com."}`))
	})
	mux.HandleFunc("/functions/v1/send-event-invitations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[{"email":"a@x.com","status":"sent"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	msg, err := c.InviteToEvent(context.Background(), "e1", []string{"a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Invitations processed successfully. Sent to: a@x.com.", msg)

	results, err := c.SendInvitations(context.Background(), "e1", []string{"a@x.com"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sent", results[0].Status)
}

// The client plugs into the query and the mutation: a successful RSVP
// invalidates the cache so the next read reaches the server again.
func TestClientDrivesQueryAndMutation(t *testing.T) {
	var reads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events/e1/attendees", func(w http.ResponseWriter, r *http.Request) {
		reads.Add(1)
		w.Write([]byte(`{"attendees":[]}`))
	})
	mux.HandleFunc("/rest/v1/rpc/update-rsvp-status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"RSVP status updated successfully"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	cache := attendees.NewCache(time.Minute)
	q := attendees.NewQuery(c, cache)
	ctx := context.Background()

	_, err = q.Attendees(ctx, "e1")
	require.NoError(t, err)
	_, err = q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, reads.Load())

	require.NoError(t, attendees.NewMutation("e1", c, cache).Update(ctx, rsvp.Going))
	_, err = q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, reads.Load())
}

func TestLoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"token":"jwt","user":{"id":"u1","email":"a@x.com"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	require.NoError(t, err)
	token, user, err := c.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, "u1", user.ID)
}
