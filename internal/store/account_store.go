package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/priobox/internal/model"
)

const accountColumns = `
	id, display_name, email_address,
	imap_server, imap_port, imap_security,
	smtp_server, smtp_port, smtp_security,
	username, signature, signature_enabled,
	created_at, updated_at`

// ListAccounts returns every account ordered by email address.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT"+accountColumns+" FROM accounts ORDER BY email_address COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount retrieves a single account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := s.db.GetContext(ctx, &account,
		"SELECT"+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "account "+id)
	}
	return &account, nil
}

// UpsertAccount inserts or updates an account and returns the stored copy.
// If the account has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, account model.Account) (model.Account, error) {
	if strings.TrimSpace(account.EmailAddress) == "" {
		return model.Account{}, fmt.Errorf("account email address must not be empty")
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email_address = excluded.email_address,
			imap_server = excluded.imap_server,
			imap_port = excluded.imap_port,
			imap_security = excluded.imap_security,
			smtp_server = excluded.smtp_server,
			smtp_port = excluded.smtp_port,
			smtp_security = excluded.smtp_security,
			username = excluded.username,
			signature = excluded.signature,
			signature_enabled = excluded.signature_enabled,
			updated_at = excluded.updated_at`,
		account.ID, account.DisplayName, account.EmailAddress,
		account.IMAPServer, account.IMAPPort, string(account.IMAPSecurity),
		account.SMTPServer, account.SMTPPort, string(account.SMTPSecurity),
		account.Username, account.Signature, boolToInt(account.SignatureEnabled),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return model.Account{}, fmt.Errorf("upserting account %s: %w", account.ID, err)
	}

	s.bus.publish(Change{Kind: ChangeAccounts, AccountID: account.ID})
	return account, nil
}

// DeleteAccount removes an account together with its folders, messages,
// VIP senders and notifications.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"notifications", "messages", "folders", "vip_senders"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE account_id = ?", id); err != nil {
			return fmt.Errorf("deleting %s of account %s: %w", table, id, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing account delete: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeAccounts, AccountID: id})
	return nil
}
