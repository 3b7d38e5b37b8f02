package testutil

import (
	"context"
	"testing"

	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Account returns a plaintext localhost account for email.
func Account(email string) model.Account {
	return model.Account{
		DisplayName:  "Test User",
		EmailAddress: email,
		IMAPServer:   "127.0.0.1",
		IMAPPort:     1143,
		IMAPSecurity: model.SecurityNone,
		SMTPServer:   "127.0.0.1",
		SMTPPort:     1025,
		SMTPSecurity: model.SecurityNone,
		Username:     email,
	}
}

// CreateAccount stores Account(email) in s and returns it with its ID.
func CreateAccount(t *testing.T, s store.Store, email string) model.Account {
	t.Helper()

	account, err := s.UpsertAccount(context.Background(), Account(email))
	if err != nil {
		t.Fatalf("creating test account: %v", err)
	}
	return account
}
