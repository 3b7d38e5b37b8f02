package store

import (
	"context"
	"fmt"

	"github.com/nhle/priobox/internal/model"
)

// ListFolders returns the cached folders of an account ordered by display
// name.
func (s *SQLiteStore) ListFolders(ctx context.Context, accountID string) ([]model.Folder, error) {
	var folders []model.Folder
	err := s.db.SelectContext(ctx, &folders, `
		SELECT account_id, server_id, display_name, selectable, type_flags
		FROM folders
		WHERE account_id = ?
		ORDER BY display_name COLLATE NOCASE, server_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying folders of %s: %w", accountID, err)
	}
	return folders, nil
}

// ReplaceFolders overwrites the folder set of an account.
func (s *SQLiteStore) ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM folders WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("clearing folders of %s: %w", accountID, err)
	}

	if len(folders) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR REPLACE INTO folders (account_id, server_id, display_name, selectable, type_flags)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing folder insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range folders {
			_, err := stmt.ExecContext(ctx,
				accountID, f.ServerID, f.DisplayName, boolToInt(f.Selectable), f.TypeFlags,
			)
			if err != nil {
				return fmt.Errorf("inserting folder %s: %w", f.ServerID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing folders: %w", err)
	}

	s.bus.publish(Change{Kind: ChangeFolders, AccountID: accountID})
	return nil
}
