package email

import (
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(err error) (*EmailService, *[]sentMail) {
	var sent []sentMail
	s := NewEmailService(SMTPServerConfig{Host: "smtp.example.com", Port: 2525, Sender: "events@example.com"})
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr, from, to, string(msg)})
		return err
	}
	return s, &sent
}

func TestSendEventInvitation(t *testing.T) {
	s, sent := newTestService(nil)
	ev := EventDetails{
		Title:     "Remembering Ada",
		StartTime: time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
		Location:  "Town hall",
		URL:       "https://app.example.com/events/e1",
	}

	require.NoError(t, s.SendEventInvitation("a@x.com", ev))
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, "smtp.example.com:2525", m.addr)
	assert.Equal(t, "events@example.com", m.from)
	assert.Equal(t, []string{"a@x.com"}, m.to)
	assert.Contains(t, m.msg, "Subject: You're invited: Remembering Ada\r\n")
	assert.Contains(t, m.msg, "Where: Town hall")
	assert.Contains(t, m.msg, ev.URL)
}

func TestSendEventCancellationWrapsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	s, _ := newTestService(boom)

	err := s.SendEventCancellation("a@x.com", EventDetails{Title: "Wake"})
	assert.ErrorIs(t, err, boom)
}

func TestUnconfiguredServiceRefusesToSend(t *testing.T) {
	s := NewEmailService(SMTPServerConfig{})
	assert.False(t, s.Configured())
	assert.Error(t, s.SendEventInvitation("a@x.com", EventDetails{Title: "x"}))
}

func headerLines(t *testing.T, msg string) []string {
	t.Helper()
	head, _, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	return strings.Split(head, "\r\n")
}

func TestSubjectStaysOnOneHeaderLine(t *testing.T) {
	s, sent := newTestService(nil)

	title := "Wake\r\nBcc: everyone@example.com\nX-Injected: yes"
	require.NoError(t, s.SendEventCancellation("a@x.com", EventDetails{Title: title}))
	require.Len(t, *sent, 1)

	lines := headerLines(t, (*sent)[0].msg)
	require.Len(t, lines, 5)
	for _, l := range lines {
		assert.False(t, strings.HasPrefix(l, "Bcc:"), l)
		assert.False(t, strings.HasPrefix(l, "X-Injected:"), l)
	}
	assert.Equal(t, "Subject: Cancelled: Wake  Bcc: everyone@example.com X-Injected: yes", lines[2])
}

func TestSubjectEncodesNonASCII(t *testing.T) {
	s, sent := newTestService(nil)

	require.NoError(t, s.SendEventInvitation("a@x.com", EventDetails{Title: "Café für Zoë"}))
	lines := headerLines(t, (*sent)[0].msg)

	subject, ok := strings.CutPrefix(lines[2], "Subject: ")
	require.True(t, ok)
	assert.NotContains(t, subject, "é")
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	require.NoError(t, err)
	assert.Equal(t, "You're invited: Café für Zoë", decoded)
}

func TestRecipientWithLineBreakIsRejected(t *testing.T) {
	s, sent := newTestService(nil)

	err := s.SendEventInvitation("a@x.com\r\nBcc: b@x.com", EventDetails{Title: "x"})
	assert.Error(t, err)
	assert.Empty(t, *sent)
}
