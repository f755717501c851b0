package invitations

import (
	"context"
	"database/sql"

	"github.com/intermernet/afterlife/internal/database"
)

// SQLStore backs the fan-out and the dispatcher with the database service.
// Reads go straight to the pool; each insert is its own write transaction.
type SQLStore struct {
	db *database.Service
}

func NewSQLStore(db *database.Service) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) EventExists(ctx context.Context, eventID string) (bool, error) {
	return s.db.EventExists(ctx, s.db.GetDB(), eventID)
}

func (s *SQLStore) InvitationExists(ctx context.Context, eventID, email string) (bool, error) {
	return s.db.InvitationExists(ctx, s.db.GetDB(), eventID, email)
}

func (s *SQLStore) EmailLogExists(ctx context.Context, eventID, email string) (bool, error) {
	return s.db.EmailLogExists(ctx, s.db.GetDB(), eventID, email, database.MailEventInvitation, "")
}

func (s *SQLStore) CreateInvitation(ctx context.Context, eventID, email string) error {
	return s.db.Write(ctx, func(tx *sql.Tx) error {
		_, err := s.db.CreateInvitation(ctx, tx, eventID, email)
		return err
	})
}

func (s *SQLStore) Event(ctx context.Context, eventID string) (*database.Event, error) {
	return s.db.GetEventByID(ctx, s.db.GetDB(), eventID)
}

func (s *SQLStore) SentBefore(ctx context.Context, eventID, email string) (bool, error) {
	return s.db.EmailLogExists(ctx, s.db.GetDB(), eventID, email, database.MailEventInvitation, database.MailSent)
}

// RecordDelivery logs one invitation mail attempt as sent, or as failed
// with the send error.
func (s *SQLStore) RecordDelivery(ctx context.Context, eventID, email string, sendErr error) error {
	entry := database.EmailLog{
		EventID:        eventID,
		RecipientEmail: email,
		MailType:       database.MailEventInvitation,
		Status:         database.MailSent,
	}
	if sendErr != nil {
		entry.Status = database.MailFailed
		entry.ErrorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
	}
	return s.db.Write(ctx, func(tx *sql.Tx) error {
		return s.db.CreateEmailLog(ctx, tx, entry)
	})
}
