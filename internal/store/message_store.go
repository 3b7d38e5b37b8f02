package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/priobox/internal/model"
)

const messageColumns = `
	id, account_id, uid, folder, sender, subject, preview, body,
	timestamp, is_read, is_vip`

// ListMessages returns the cached messages of one folder, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, accountID, folder string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE account_id = ? AND folder = ?
		ORDER BY timestamp DESC, id DESC`, accountID, folder)
	if err != nil {
		return nil, fmt.Errorf("querying messages of %s/%s: %w", accountID, folder, err)
	}
	return msgs, nil
}

// ListVipMessages returns the account's messages whose persisted VIP flag
// is set, across all folders, newest first.
func (s *SQLiteStore) ListVipMessages(ctx context.Context, accountID string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT`+messageColumns+`
		FROM messages
		WHERE account_id = ? AND is_vip = 1
		ORDER BY timestamp DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying vip messages of %s: %w", accountID, err)
	}
	return msgs, nil
}

// GetMessage retrieves a single message by its row ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var msg model.Message
	err := s.db.GetContext(ctx, &msg,
		"SELECT"+messageColumns+" FROM messages WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("message %d", id))
	}
	return &msg, nil
}

// ReplaceMessages reconciles the cached messages of (accountID, folder)
// with msgs: rows whose uid is not in msgs are deleted, then every
// message is upserted. The read flag of an existing row is kept, and the
// VIP flag is derived from the account's VIP senders. An empty msgs
// clears the folder.
func (s *SQLiteStore) ReplaceMessages(
	ctx context.Context, accountID, folder string, msgs []model.Message,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteMissing(ctx, tx, accountID, folder, msgs); err != nil {
		return err
	}

	if len(msgs) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO messages (
				account_id, uid, folder, sender, sender_norm, subject, preview, body,
				timestamp, is_read, is_vip
			) VALUES (
				?, ?, ?, ?, ?, ?, ?, ?,
				?, ?,
				EXISTS (
					SELECT 1 FROM vip_senders
					WHERE account_id = ? AND email_address = ?
				)
			)
			ON CONFLICT(account_id, folder, uid) DO UPDATE SET
				sender = excluded.sender,
				sender_norm = excluded.sender_norm,
				subject = excluded.subject,
				preview = excluded.preview,
				body = excluded.body,
				timestamp = excluded.timestamp,
				is_vip = excluded.is_vip`)
		if err != nil {
			return fmt.Errorf("preparing message upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			senderNorm := model.NormalizeAddress(m.Sender)
			_, err := stmt.ExecContext(ctx,
				accountID, m.UID, folder, m.Sender, senderNorm, m.Subject, m.Preview, m.Body,
				m.Timestamp, boolToInt(m.IsRead),
				accountID, senderNorm,
			)
			if err != nil {
				return fmt.Errorf("upserting message %s/%s: %w", folder, m.UID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeMessages, AccountID: accountID, Folder: folder})
	return nil
}

// deleteMissing removes the rows of (accountID, folder) whose uid is not
// among msgs.
func deleteMissing(ctx context.Context, tx *sqlx.Tx, accountID, folder string, msgs []model.Message) error {
	if len(msgs) == 0 {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM messages WHERE account_id = ? AND folder = ?", accountID, folder)
		if err != nil {
			return fmt.Errorf("clearing messages of %s/%s: %w", accountID, folder, err)
		}
		return nil
	}

	uids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		uids = append(uids, m.UID)
	}

	query, args, err := sqlx.In(
		"DELETE FROM messages WHERE account_id = ? AND folder = ? AND uid NOT IN (?)",
		accountID, folder, uids,
	)
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting stale messages of %s/%s: %w", accountID, folder, err)
	}
	return nil
}

// UpdateReadState sets the read flag of a single message.
func (s *SQLiteStore) UpdateReadState(ctx context.Context, id int64, isRead bool) error {
	var msg struct {
		AccountID string `db:"account_id"`
		Folder    string `db:"folder"`
	}
	if err := s.db.GetContext(ctx, &msg,
		"SELECT account_id, folder FROM messages WHERE id = ?", id); err != nil {
		return notFound(err, fmt.Sprintf("message %d", id))
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_read = ? WHERE id = ?", boolToInt(isRead), id)
	if err != nil {
		return fmt.Errorf("updating read state of message %d: %w", id, err)
	}

	s.bus.publish(Change{Kind: ChangeMessages, AccountID: msg.AccountID, Folder: msg.Folder})
	return nil
}
