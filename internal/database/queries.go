package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DBorTx lets query helpers run either on the pool for single reads or
// inside a transaction handed out by Service.Write.
type DBorTx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Profile Queries ---

const profileColumns = `id, email, username, full_name, avatar_url, password_hash, role, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.FullName, &p.AvatarURL, &p.PasswordHash, &p.Role, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProfile inserts a new profile. An empty passwordHash is stored as NULL
// for accounts that only sign in through Google.
func (s *Service) CreateProfile(ctx context.Context, db DBorTx, email, username, fullName, passwordHash string) (*Profile, error) {
	id := uuid.NewString()
	query := `INSERT INTO profiles (id, email, username, full_name, password_hash) VALUES (?, ?, ?, ?, ?);`
	_, err := db.ExecContext(ctx, query, id, email, nullString(username), nullString(fullName), nullString(passwordHash))
	if err != nil {
		return nil, err
	}
	return s.GetProfileByID(ctx, db, id)
}

func (s *Service) GetProfileByID(ctx context.Context, db DBorTx, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?;`
	return scanProfile(db.QueryRowContext(ctx, query, id))
}

// GetProfileByEmail returns sql.ErrNoRows when no profile uses the address.
func (s *Service) GetProfileByEmail(ctx context.Context, db DBorTx, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?;`
	return scanProfile(db.QueryRowContext(ctx, query, email))
}

// ProfileUpdate carries the editable profile fields; nil fields are left alone.
type ProfileUpdate struct {
	Username  *string
	FullName  *string
	AvatarURL *string
}

// UpdateProfile applies the non-nil fields of u to the profile.
func (s *Service) UpdateProfile(ctx context.Context, db DBorTx, id string, u ProfileUpdate) error {
	var sets []string
	var args []any
	if u.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, nullString(*u.Username))
	}
	if u.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, nullString(*u.FullName))
	}
	if u.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, nullString(*u.AvatarURL))
	}
	if len(sets) == 0 {
		return errors.New("no changes provided")
	}

	args = append(args, id)
	query := "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
	return execOne(ctx, db, query, args...)
}

func (s *Service) UpdatePasswordHash(ctx context.Context, db DBorTx, id, passwordHash string) error {
	return execOne(ctx, db, `UPDATE profiles SET password_hash = ? WHERE id = ?;`, passwordHash, id)
}

// execOne runs an UPDATE and returns sql.ErrNoRows when it matched nothing.
func execOne(ctx context.Context, db DBorTx, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Event Queries ---

const eventColumns = `id, title, description, start_time, end_time, location_text, status, creator_id, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	e := &Event{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.LocationText, &e.Status, &e.CreatorID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewEvent holds the fields needed to create an event.
type NewEvent struct {
	Title        string
	Description  string
	StartTime    time.Time
	EndTime      *time.Time
	LocationText string
	Status       string
	CreatorID    string
}

// CreateEvent inserts the event and registers its creator as the managing
// attendee. Run it inside Service.Write so both rows land together.
func (s *Service) CreateEvent(ctx context.Context, tx *sql.Tx, e NewEvent) (*Event, error) {
	id := uuid.NewString()
	status := e.Status
	if status == "" {
		status = EventPublished
	}

	var end sql.NullTime
	if e.EndTime != nil {
		end = sql.NullTime{Time: *e.EndTime, Valid: true}
	}

	query := `INSERT INTO events (id, title, description, start_time, end_time, location_text, status, creator_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := tx.ExecContext(ctx, query, id, e.Title, e.Description, e.StartTime, end, nullString(e.LocationText), status, e.CreatorID)
	if err != nil {
		return nil, err
	}

	if err := s.AddAttendee(ctx, tx, id, e.CreatorID, AttendeeManager); err != nil {
		return nil, err
	}
	return s.GetEventByID(ctx, tx, id)
}

func (s *Service) GetEventByID(ctx context.Context, db DBorTx, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?;`
	return scanEvent(db.QueryRowContext(ctx, query, id))
}

// EventExists reports whether an event with the given id is stored.
func (s *Service) EventExists(ctx context.Context, db DBorTx, id string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = ?);`, id).Scan(&exists)
	return exists, err
}

// GetEventsForProfile lists the events a profile created or is attending,
// soonest first.
func (s *Service) GetEventsForProfile(ctx context.Context, db DBorTx, userID string) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE creator_id = ?
		   OR id IN (SELECT event_id FROM event_attendees WHERE user_id = ?)
		ORDER BY start_time ASC;`

	rows, err := db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Service) UpdateEventStatus(ctx context.Context, db DBorTx, eventID, status string) error {
	return execOne(ctx, db, `UPDATE events SET status = ? WHERE id = ?;`, status, eventID)
}

// --- Attendee Queries ---

const attendeeSelect = `
	SELECT a.id, a.event_id, a.user_id, a.guest_name, a.guest_email, a.role, a.status,
	       a.responded_at, a.created_at,
	       p.id, p.username, p.full_name, p.avatar_url, p.email
	FROM event_attendees a
	LEFT JOIN profiles p ON p.id = a.user_id`

func scanAttendee(row interface{ Scan(...any) error }) (*Attendee, error) {
	a := &Attendee{}
	err := row.Scan(
		&a.ID, &a.EventID, &a.UserID, &a.GuestName, &a.GuestEmail, &a.Role, &a.Status,
		&a.RespondedAt, &a.CreatedAt,
		&a.ProfileID, &a.ProfileUsername, &a.ProfileFullName, &a.ProfileAvatar, &a.ProfileEmail,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) queryAttendees(ctx context.Context, db DBorTx, query string, args ...any) ([]*Attendee, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attendees []*Attendee
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// AddAttendee registers a user on an event with the given role and no RSVP yet.
func (s *Service) AddAttendee(ctx context.Context, db DBorTx, eventID, userID, role string) error {
	query := `INSERT INTO event_attendees (event_id, user_id, role) VALUES (?, ?, ?);`
	_, err := db.ExecContext(ctx, query, eventID, userID, role)
	return err
}

// GetAttendeesByEventID returns every attendee row of the event with the
// profile columns filled when a matching profile exists.
func (s *Service) GetAttendeesByEventID(ctx context.Context, db DBorTx, eventID string) ([]*Attendee, error) {
	return s.queryAttendees(ctx, db, attendeeSelect+` WHERE a.event_id = ? ORDER BY a.created_at, a.id;`, eventID)
}

// GetAttendee returns the attendee row of a registered user on an event.
func (s *Service) GetAttendee(ctx context.Context, db DBorTx, eventID, userID string) (*Attendee, error) {
	return scanAttendee(db.QueryRowContext(ctx, attendeeSelect+` WHERE a.event_id = ? AND a.user_id = ?;`, eventID, userID))
}

// GetNotifiableAttendees returns registered attendees that have not declined.
func (s *Service) GetNotifiableAttendees(ctx context.Context, db DBorTx, eventID string) ([]*Attendee, error) {
	query := attendeeSelect + `
		WHERE a.event_id = ? AND a.user_id IS NOT NULL
		  AND (a.status IS NULL OR a.status IN ('going', 'maybe'))
		ORDER BY a.id;`
	return s.queryAttendees(ctx, db, query, eventID)
}

// UpsertAttendeeStatus records a user's RSVP, creating the attendee row as a
// participant if the user was not on the event yet. Any status may replace
// any other.
func (s *Service) UpsertAttendeeStatus(ctx context.Context, db DBorTx, eventID, userID, status string, at time.Time) error {
	query := `
		INSERT INTO event_attendees (event_id, user_id, role, status, responded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = excluded.status, responded_at = excluded.responded_at;`
	_, err := db.ExecContext(ctx, query, eventID, userID, AttendeeParticipant, status, at)
	return err
}

// UpsertGuestStatus records the RSVP of a guest identified by email.
func (s *Service) UpsertGuestStatus(ctx context.Context, db DBorTx, eventID, guestEmail, guestName, status string, at time.Time) error {
	query := `
		INSERT INTO event_attendees (event_id, guest_email, guest_name, role, status, responded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id, guest_email) DO UPDATE
		SET status = excluded.status,
		    responded_at = excluded.responded_at,
		    guest_name = COALESCE(excluded.guest_name, event_attendees.guest_name);`
	_, err := db.ExecContext(ctx, query, eventID, guestEmail, nullString(guestName), AttendeeParticipant, status, at)
	return err
}

func (s *Service) UpdateAttendeeRole(ctx context.Context, db DBorTx, eventID, userID, role string) error {
	return execOne(ctx, db, `UPDATE event_attendees SET role = ? WHERE event_id = ? AND user_id = ?;`, role, eventID, userID)
}

// --- Invitation Queries ---

// CreateInvitation inserts an 'invited' row. The (event_id, email) unique
// constraint rejects a second row for the same address.
func (s *Service) CreateInvitation(ctx context.Context, db DBorTx, eventID, email string) (*Invitation, error) {
	inv := &Invitation{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Email:     email,
		Status:    "invited",
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO event_invitations (id, event_id, email, status, created_at) VALUES (?, ?, ?, ?, ?);`
	if _, err := db.ExecContext(ctx, query, inv.ID, inv.EventID, inv.Email, inv.Status, inv.CreatedAt); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) InvitationExists(ctx context.Context, db DBorTx, eventID, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM event_invitations WHERE event_id = ? AND email = ?);`
	err := db.QueryRowContext(ctx, query, eventID, email).Scan(&exists)
	return exists, err
}

func (s *Service) GetInvitationsByEventID(ctx context.Context, db DBorTx, eventID string) ([]*Invitation, error) {
	query := `SELECT id, event_id, email, status, created_at FROM event_invitations WHERE event_id = ? ORDER BY created_at;`
	rows, err := db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		if err := rows.Scan(&inv.ID, &inv.EventID, &inv.Email, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// --- Email Log Queries ---

// EmailLogExists looks for a log entry of mailType for the recipient on the
// event. An empty status matches entries of any status.
func (s *Service) EmailLogExists(ctx context.Context, db DBorTx, eventID, email, mailType, status string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM email_logs WHERE event_id = ? AND recipient_email = ? AND mail_type = ?`
	args := []any{eventID, email, mailType}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += `);`

	var exists bool
	err := db.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (s *Service) CreateEmailLog(ctx context.Context, db DBorTx, l EmailLog) error {
	query := `INSERT INTO email_logs (event_id, recipient_email, mail_type, status, error_message) VALUES (?, ?, ?, ?, ?);`
	_, err := db.ExecContext(ctx, query, l.EventID, l.RecipientEmail, l.MailType, l.Status, l.ErrorMessage)
	return err
}

// --- Notification Queries ---

const notificationColumns = `id, recipient_id, sender_id, type, entity_type, entity_id, message, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*Notification, error) {
	n := &Notification{}
	err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.EntityType, &n.EntityID, &n.Message, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// UpsertNotification stores n, replacing the message of an existing
// notification with the same recipient, entity and type and marking it unread.
func (s *Service) UpsertNotification(ctx context.Context, db DBorTx, n Notification) (*Notification, error) {
	query := `
		INSERT INTO notifications (id, recipient_id, sender_id, type, entity_type, entity_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (recipient_id, entity_id, type) DO UPDATE
		SET sender_id = excluded.sender_id,
		    message = excluded.message,
		    is_read = 0,
		    created_at = excluded.created_at;`
	_, err := db.ExecContext(ctx, query, uuid.NewString(), n.RecipientID, n.SenderID, n.Type, n.EntityType, n.EntityID, n.Message, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	lookup := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ? AND entity_id = ? AND type = ?;`
	return scanNotification(db.QueryRowContext(ctx, lookup, n.RecipientID, n.EntityID, n.Type))
}

func (s *Service) GetNotificationsByRecipient(ctx context.Context, db DBorTx, recipientID string) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC;`
	rows, err := db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags a notification as read for its recipient only.
func (s *Service) MarkNotificationRead(ctx context.Context, db DBorTx, id, recipientID string) error {
	return execOne(ctx, db, `UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ?;`, id, recipientID)
}

// --- Audit Log Queries ---

func (s *Service) CreateAuditLog(ctx context.Context, db DBorTx, l AuditLog) error {
	query := `INSERT INTO audit_logs (action, performed_by, target_type, target_id, description) VALUES (?, ?, ?, ?, ?);`
	_, err := db.ExecContext(ctx, query, l.Action, l.PerformedBy, l.TargetType, l.TargetID, l.Description)
	return err
}
