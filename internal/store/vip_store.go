package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/priobox/internal/model"
)

// ListVipSenders returns the VIP senders of an account.
func (s *SQLiteStore) ListVipSenders(ctx context.Context, accountID string) ([]model.VipSender, error) {
	var senders []model.VipSender
	err := s.db.SelectContext(ctx, &senders, `
		SELECT account_id, email_address, created_at
		FROM vip_senders
		WHERE account_id = ?
		ORDER BY email_address`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying vip senders of %s: %w", accountID, err)
	}
	return senders, nil
}

// GetVipSender returns the VIP sender matching email case-insensitively,
// or nil when the address is not a VIP.
func (s *SQLiteStore) GetVipSender(ctx context.Context, accountID, email string) (*model.VipSender, error) {
	var sender model.VipSender
	err := s.db.GetContext(ctx, &sender, `
		SELECT account_id, email_address, created_at
		FROM vip_senders
		WHERE account_id = ? AND email_address = ?`,
		accountID, model.NormalizeAddress(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting vip sender %s: %w", email, err)
	}
	return &sender, nil
}

// AddVipSender marks email as VIP for the account.
func (s *SQLiteStore) AddVipSender(ctx context.Context, accountID, email string) error {
	return s.SetVipSender(ctx, accountID, email, true)
}

// RemoveVipSender clears the VIP mark of email for the account.
func (s *SQLiteStore) RemoveVipSender(ctx context.Context, accountID, email string) error {
	return s.SetVipSender(ctx, accountID, email, false)
}

// SetVipSender adds or removes a VIP sender and retags the account's
// cached messages from that sender in the same transaction.
func (s *SQLiteStore) SetVipSender(ctx context.Context, accountID, email string, isVip bool) error {
	email = model.NormalizeAddress(email)
	if email == "" {
		return fmt.Errorf("vip sender address must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isVip {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO vip_senders (account_id, email_address, created_at)
			VALUES (?, ?, ?)`, accountID, email, time.Now().UTC())
	} else {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM vip_senders WHERE account_id = ? AND email_address = ?", accountID, email)
	}
	if err != nil {
		return fmt.Errorf("updating vip sender %s: %w", email, err)
	}

	if err := updateVipStatus(ctx, tx, accountID, email, isVip); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vip sender: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeVipSenders, AccountID: accountID})
	s.bus.publish(Change{Kind: ChangeMessages, AccountID: accountID})
	return nil
}

// UpdateVipStatus sets the VIP flag of every cached message of the account
// sent by email. Senders are matched on their model.NormalizeAddress form.
func (s *SQLiteStore) UpdateVipStatus(ctx context.Context, accountID, email string, isVip bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateVipStatus(ctx, tx, accountID, email, isVip); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vip status: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeMessages, AccountID: accountID})
	return nil
}

func updateVipStatus(ctx context.Context, tx *sqlx.Tx, accountID, email string, isVip bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_vip = ?
		WHERE account_id = ? AND sender_norm = ?`,
		boolToInt(isVip), accountID, model.NormalizeAddress(email))
	if err != nil {
		return fmt.Errorf("updating vip status for %s: %w", email, err)
	}
	return nil
}
