package store

import (
	"context"
	"errors"

	"github.com/nhle/priobox/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for accounts, folders, cached
// messages, VIP senders and notifications.
type Store interface {
	// === Accounts ===

	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	UpsertAccount(ctx context.Context, account model.Account) (model.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// === Folders ===

	ListFolders(ctx context.Context, accountID string) ([]model.Folder, error)
	ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error

	// === Messages ===

	ListMessages(ctx context.Context, accountID, folder string) ([]model.Message, error)
	ListVipMessages(ctx context.Context, accountID string) ([]model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	ReplaceMessages(ctx context.Context, accountID, folder string, msgs []model.Message) error
	UpdateReadState(ctx context.Context, id int64, isRead bool) error

	// === VIP senders ===

	ListVipSenders(ctx context.Context, accountID string) ([]model.VipSender, error)
	GetVipSender(ctx context.Context, accountID, email string) (*model.VipSender, error)
	AddVipSender(ctx context.Context, accountID, email string) error
	RemoveVipSender(ctx context.Context, accountID, email string) error
	SetVipSender(ctx context.Context, accountID, email string, isVip bool) error
	UpdateVipStatus(ctx context.Context, accountID, email string, isVip bool) error

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// === Change feed ===

	Subscribe() <-chan Change
	Unsubscribe(ch <-chan Change)

	Close() error
}
