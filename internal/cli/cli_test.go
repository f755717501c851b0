package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fakeServer serves one event, e1, managed by u2 and joined by u1 (the
// signed-in user) and a guest.
type fakeServer struct {
	mu       sync.Mutex
	status   string
	rpcCalls int
	invited  []string
}

func (f *fakeServer) calls() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rpcCalls, append([]string(nil), f.invited...)
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"jwt-u1","user":{"id":"u1","email":"ada@example.com"}}`))
	})
	mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user":{"id":"u1","email":"ada@example.com","full_name":"Ada Lovelace"}}`))
	})
	mux.HandleFunc("/api/v1/events/e1/attendees", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := "null"
		if f.status != "" {
			status = fmt.Sprintf("%q", f.status)
		}
		f.mu.Unlock()
		fmt.Fprintf(w, `{"attendees":[
			{"id":1,"event_id":"e1","user_id":"u2","role":"manager","status":"going","created_at":"2024-05-01T10:00:00Z",
			 "profiles":{"id":"u2","username":"grace","full_name":"Grace Hopper","avatar_url":null}},
			{"id":2,"event_id":"e1","user_id":"u1","role":"participant","status":%s,"created_at":"2024-05-01T10:00:00Z",
			 "profiles":[{"id":"u1","username":"ada","full_name":"Ada Lovelace","avatar_url":null}]},
			{"id":3,"event_id":"e1","user_id":null,"guest_name":"Bob","guest_email":"bob@example.com","role":"participant","status":"maybe","created_at":"2024-05-01T10:00:00Z","profiles":null}
		]}`, status)
	})
	mux.HandleFunc("/rest/v1/rpc/update-rsvp-status", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.mu.Lock()
		f.status = in["new_status"]
		f.rpcCalls++
		f.mu.Unlock()
		w.Write([]byte(`{"message":"RSVP status updated successfully"}`))
	})
	mux.HandleFunc("/functions/v1/handle-event-invitations", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Invitees []struct {
				Email string `json:"email"`
			} `json:"invitees"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.mu.Lock()
		for _, i := range in.Invitees {
			f.invited = append(f.invited, i.Email)
		}
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"message":"Invitations processed successfully. Sent to: a@x.com."}`))
	})
	mux.HandleFunc("/functions/v1/send-event-invitations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"results":[{"email":"a@x.com","status":"sent"},{"email":"b@x.com","status":"failed","message":"smtp error: refused"}]}`))
	})
	return mux
}

func run(t *testing.T, srvURL string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--api-url", srvURL}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func newFake(t *testing.T) (*fakeServer, string) {
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"login", "attendees", "rsvp", "invite"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestTokenDefaultsFromEnvironment(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	cmd := NewRootCommand()
	assert.Equal(t, "from-env", cmd.PersistentFlags().Lookup("token").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, url := newFake(t)
	_, err := run(t, url, "--format", "xml", "--token", "tok", "attendees", "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoginPrintsToken(t *testing.T) {
	_, url := newFake(t)

	out, err := run(t, url, "login", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-u1\n", out)

	_, err = run(t, url, "login", "--email", "ada@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestAttendeesRequiresToken(t *testing.T) {
	t.Setenv(EnvToken, "")
	_, url := newFake(t)
	_, err := run(t, url, "attendees", "e1")
	require.ErrorIs(t, err, errNoToken)
}

func TestAttendeesText(t *testing.T) {
	_, url := newFake(t)

	out, err := run(t, url, "--token", "tok", "attendees", "e1")
	require.NoError(t, err)
	assert.Contains(t, out, "You have not answered yet.")
	assert.Contains(t, out, "all 3  going 1  maybe 1  declined 0")
	assert.Contains(t, out, "Grace Hopper (@grace)")
	assert.Contains(t, out, "Invited")
	// Guests carry no profile and are not listed.
	assert.NotContains(t, out, "Bob")
}

func TestAttendeesFilteredJSON(t *testing.T) {
	_, url := newFake(t)

	out, err := run(t, url, "--token", "tok", "--format", "json", "attendees", "e1", "--status", "going", "--search", "GRACE")
	require.NoError(t, err)

	var got attendeesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Manager)
	assert.Nil(t, got.Mine)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "Going", got.Attendees[0].Label)
	assert.Equal(t, "positive", got.Attendees[0].Tone)
}

func TestAttendeesRejectsUnknownTab(t *testing.T) {
	_, url := newFake(t)
	_, err := run(t, url, "--token", "tok", "attendees", "e1", "--status", "invited")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tab")
}

func TestRSVPUpdatesAndRereads(t *testing.T) {
	f, url := newFake(t)

	out, err := run(t, url, "--token", "tok", "rsvp", "e1", "maybe")
	require.NoError(t, err)
	assert.Equal(t, "You (Ada Lovelace): Maybe\n", out)

	// Same answer again is still sent.
	_, err = run(t, url, "--token", "tok", "rsvp", "e1", "maybe")
	require.NoError(t, err)
	calls, _ := f.calls()
	assert.Equal(t, 2, calls)
}

func TestRSVPRejectsUnknownStatus(t *testing.T) {
	f, url := newFake(t)
	_, err := run(t, url, "--token", "tok", "rsvp", "e1", "attending")
	require.Error(t, err)
	calls, _ := f.calls()
	assert.Zero(t, calls)
}

func TestRSVPYAML(t *testing.T) {
	_, url := newFake(t)
	out, err := run(t, url, "--token", "tok", "--format", "yaml", "rsvp", "e1", "declined")
	require.NoError(t, err)

	var got badgeOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "declined", got.Status)
	assert.Equal(t, "Declined", got.Label)
}

func TestInviteAndSend(t *testing.T) {
	f, url := newFake(t)

	out, err := run(t, url, "--token", "tok", "invite", "e1", "a@x.com", "b@x.com", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "Invitations processed successfully. Sent to: a@x.com.")
	assert.Contains(t, out, "failed (smtp error: refused)")
	_, invited := f.calls()
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, invited)
}

func TestInviteNeedsAnAddress(t *testing.T) {
	_, url := newFake(t)
	_, err := run(t, url, "--token", "tok", "invite", "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestCacheTTLFromEnvironment(t *testing.T) {
	t.Setenv(EnvCacheTTL, "30s")
	cmd := NewRootCommand()
	assert.Equal(t, "30s", cmd.PersistentFlags().Lookup("cache-ttl").DefValue)

	_, url := newFake(t)
	_, err := run(t, url, "--cache-ttl", "0s", "--token", "tok", "attendees", "e1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache ttl")
}
