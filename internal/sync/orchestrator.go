// Package sync reconciles remote mailboxes into the local cache and runs
// the periodic VIP notification job.
package sync

import (
	"context"
	"errors"
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/charmbracelet/log"

	"github.com/nhle/priobox/internal/credential"
	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/parser"
	"github.com/nhle/priobox/internal/store"
	"github.com/nhle/priobox/internal/vip"
)

// MailTransport fetches mailbox state from an IMAP server.
type MailTransport interface {
	TestConnection(ctx context.Context, account model.Account, password string) error
	ListFolders(ctx context.Context, account model.Account, password string) ([]model.Folder, error)
	FetchMessages(ctx context.Context, account model.Account, password, folder string, maxCount int) ([]model.Message, error)
	SetReadState(ctx context.Context, account model.Account, password, folder, uid string, isRead bool) error
}

// MailDispatcher sends composed messages over SMTP.
type MailDispatcher interface {
	TestConnection(ctx context.Context, account model.Account, password string) error
	Send(ctx context.Context, account model.Account, password string, out model.Outgoing) error
}

// Cache is the subset of the store the orchestrator works against.
type Cache interface {
	vip.Store

	ListAccounts(ctx context.Context) ([]model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	UpsertAccount(ctx context.Context, account model.Account) (model.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	ListFolders(ctx context.Context, accountID string) ([]model.Folder, error)
	ReplaceFolders(ctx context.Context, accountID string, folders []model.Folder) error

	ListMessages(ctx context.Context, accountID, folder string) ([]model.Message, error)
	ListVipMessages(ctx context.Context, accountID string) ([]model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	ReplaceMessages(ctx context.Context, accountID, folder string, msgs []model.Message) error
	UpdateReadState(ctx context.Context, id int64, isRead bool) error
}

// Vault stores account passwords keyed by account ID.
type Vault interface {
	Get(accountID string) (string, error)
	Set(accountID, password string) error
	Clear(accountID string) error
}

// Options tune the orchestrator.
type Options struct {
	// MaxMessages bounds the per-folder fetch window.
	MaxMessages int
}

// Orchestrator drives the transports against the cache for one account
// at a time. Reconciliation of the same (account, folder) never runs
// concurrently.
type Orchestrator struct {
	transport  MailTransport
	dispatcher MailDispatcher
	cache      Cache
	vault      Vault
	tagger     *vip.Tagger
	logger     *log.Logger
	opts       Options

	// locks holds one *gosync.Mutex per (account, folder) key.
	locks gosync.Map

	readFile func(path string) ([]byte, error)
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(
	transport MailTransport,
	dispatcher MailDispatcher,
	cache Cache,
	vault Vault,
	logger *log.Logger,
	opts Options,
) *Orchestrator {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 50
	}
	return &Orchestrator{
		transport:  transport,
		dispatcher: dispatcher,
		cache:      cache,
		vault:      vault,
		tagger:     vip.NewTagger(cache),
		logger:     logger,
		opts:       opts,
		readFile:   os.ReadFile,
	}
}

// lockFor returns the mutex serializing writes for (accountID, folder).
// An empty folder keys the account's folder list.
func (o *Orchestrator) lockFor(accountID, folder string) *gosync.Mutex {
	key := accountID + "\x00" + folder
	if mu, ok := o.locks.Load(key); ok {
		return mu.(*gosync.Mutex)
	}
	actual, _ := o.locks.LoadOrStore(key, &gosync.Mutex{})
	return actual.(*gosync.Mutex)
}

// password resolves the account password. A missing entry is a
// configuration error.
func (o *Orchestrator) password(account model.Account) (string, error) {
	pw, err := o.vault.Get(account.ID)
	if errors.Is(err, credential.ErrNotFound) {
		return "", mailerr.MissingCredentials(account.EmailAddress)
	}
	if err != nil {
		return "", fmt.Errorf("reading credentials for %s: %w", account.EmailAddress, err)
	}
	return pw, nil
}

// SyncFolders replaces the cached folder list of account with the
// server's.
func (o *Orchestrator) SyncFolders(ctx context.Context, account model.Account) error {
	pw, err := o.password(account)
	if err != nil {
		return err
	}

	mu := o.lockFor(account.ID, "")
	mu.Lock()
	defer mu.Unlock()

	folders, err := o.transport.ListFolders(ctx, account, pw)
	if err != nil {
		return fmt.Errorf("listing folders of %s: %w", account.EmailAddress, err)
	}
	if err := o.cache.ReplaceFolders(ctx, account.ID, folders); err != nil {
		return err
	}

	o.logger.Debug("folders synced", "account", account.ID, "count", len(folders))
	return nil
}

// SyncFolder reconciles the cached messages of folder with the newest
// messages on the server: cached uids missing remotely are deleted and
// the fetched messages are upserted, keeping local read state.
func (o *Orchestrator) SyncFolder(ctx context.Context, account model.Account, folder string) error {
	if folder == "" {
		folder = model.InboxServerID
	}

	pw, err := o.password(account)
	if err != nil {
		return err
	}

	mu := o.lockFor(account.ID, folder)
	mu.Lock()
	defer mu.Unlock()

	msgs, err := o.transport.FetchMessages(ctx, account, pw, folder, o.opts.MaxMessages)
	if err != nil {
		return fmt.Errorf("fetching %s of %s: %w", folder, account.EmailAddress, err)
	}
	for i := range msgs {
		msgs[i].AccountID = account.ID
		msgs[i].Folder = folder
	}

	if err := o.cache.ReplaceMessages(ctx, account.ID, folder, msgs); err != nil {
		return err
	}

	o.logger.Debug("folder synced", "account", account.ID, "folder", folder, "count", len(msgs))
	return nil
}

// SyncInbox refreshes the folder list and then the inbox.
func (o *Orchestrator) SyncInbox(ctx context.Context, account model.Account) error {
	if err := o.SyncFolders(ctx, account); err != nil {
		return err
	}
	return o.SyncFolder(ctx, account, model.InboxServerID)
}

// SyncAccount refreshes the folder list and then every selectable folder
// in turn. A failing folder does not stop the others; their errors are
// joined.
func (o *Orchestrator) SyncAccount(ctx context.Context, account model.Account) error {
	if err := o.SyncFolders(ctx, account); err != nil {
		return err
	}

	folders, err := o.cache.ListFolders(ctx, account.ID)
	if err != nil {
		return err
	}

	var errs []error
	for _, f := range folders {
		if !f.Selectable {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.SyncFolder(ctx, account, f.ServerID); err != nil {
			o.logger.Warn("folder sync failed",
				"account", account.ID, "folder", f.ServerID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FolderMessages returns the cached messages of a folder with the VIP
// flag derived from the current VIP senders.
func (o *Orchestrator) FolderMessages(ctx context.Context, accountID, folder string) ([]model.Message, error) {
	msgs, err := o.cache.ListMessages(ctx, accountID, folder)
	if err != nil {
		return nil, err
	}
	return o.tagger.Tag(ctx, accountID, msgs)
}

// VipInbox returns the account's messages flagged VIP, newest first.
func (o *Orchestrator) VipInbox(ctx context.Context, accountID string) ([]model.Message, error) {
	msgs, err := o.cache.ListVipMessages(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return o.tagger.Tag(ctx, accountID, msgs)
}

// ToggleVip flips the VIP membership of email and retags the account's
// cached messages. It returns the new membership.
func (o *Orchestrator) ToggleVip(ctx context.Context, accountID, email string) (bool, error) {
	isVip, err := o.tagger.Toggle(ctx, accountID, email)
	if err != nil {
		return false, err
	}
	o.logger.Info("vip sender toggled", "account", accountID, "email", email, "vip", isVip)
	return isVip, nil
}

// SetMessageReadState updates the cached read flag and then pushes it to
// the server. Push failures are logged only.
func (o *Orchestrator) SetMessageReadState(ctx context.Context, messageID int64, isRead bool) error {
	msg, err := o.cache.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := o.cache.UpdateReadState(ctx, messageID, isRead); err != nil {
		return err
	}

	if err := o.pushReadState(ctx, *msg, isRead); err != nil {
		o.logger.Warn("remote read state not updated",
			"message", messageID, "account", msg.AccountID, "err", err)
	}
	return nil
}

// MarkRead marks a cached message read.
func (o *Orchestrator) MarkRead(ctx context.Context, messageID int64) error {
	return o.SetMessageReadState(ctx, messageID, true)
}

func (o *Orchestrator) pushReadState(ctx context.Context, msg model.Message, isRead bool) error {
	account, err := o.cache.GetAccount(ctx, msg.AccountID)
	if err != nil {
		return err
	}
	pw, err := o.password(*account)
	if err != nil {
		return err
	}
	return o.transport.SetReadState(ctx, *account, pw, msg.Folder, msg.UID, isRead)
}

// SendEmail appends the account signature when enabled, loads attachment
// data and hands the message to the dispatcher. Attachments that cannot
// be read are skipped.
func (o *Orchestrator) SendEmail(
	ctx context.Context,
	account model.Account,
	to []string,
	subject, bodyHTML string,
	attachments []model.Attachment,
) error {
	pw, err := o.password(account)
	if err != nil {
		return err
	}

	htmlBody, textBody := ComposeBodies(account, bodyHTML)

	return o.dispatcher.Send(ctx, account, pw, model.Outgoing{
		To:          to,
		Subject:     subject,
		BodyHTML:    htmlBody,
		BodyText:    textBody,
		Attachments: o.loadAttachments(attachments),
	})
}

// ComposeBodies returns the HTML and plain text bodies of an outgoing
// message, with the account signature appended when enabled.
func ComposeBodies(account model.Account, bodyHTML string) (htmlBody, textBody string) {
	htmlBody = bodyHTML
	textBody = parser.StripHTML(bodyHTML)

	if !account.HasSignature() {
		return htmlBody, textBody
	}

	signature := strings.TrimSpace(account.Signature)
	escaped := strings.ReplaceAll(html.EscapeString(signature), "\n", "<br/>")

	htmlBody = strings.TrimRight(bodyHTML, " \t\r\n") + "<br/><br/>" + escaped
	textBody = strings.TrimRight(textBody, " \t\r\n") + "\n\n" + signature
	return htmlBody, textBody
}

func (o *Orchestrator) loadAttachments(in []model.Attachment) []model.Attachment {
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		if len(a.Data) == 0 && a.Path != "" {
			data, err := o.readFile(a.Path)
			if err != nil {
				o.logger.Warn("skipping unreadable attachment", "path", a.Path, "err", err)
				continue
			}
			a.Data = data
		}
		if len(a.Data) == 0 {
			o.logger.Warn("skipping attachment without data", "name", a.FileName)
			continue
		}
		if a.FileName == "" && a.Path != "" {
			a.FileName = filepath.Base(a.Path)
		}
		if a.MimeType == "" {
			a.MimeType = mime.TypeByExtension(filepath.Ext(a.FileName))
		}
		out = append(out, a)
	}
	return out
}

// TestIMAP checks that account can log in to its IMAP server.
func (o *Orchestrator) TestIMAP(ctx context.Context, account model.Account, password string) error {
	return o.transport.TestConnection(ctx, account, password)
}

// TestSMTP checks that account can authenticate to its SMTP server.
func (o *Orchestrator) TestSMTP(ctx context.Context, account model.Account, password string) error {
	return o.dispatcher.TestConnection(ctx, account, password)
}

// SaveAccount stores account and, when password is not empty, its
// password. It returns the stored account with its ID.
func (o *Orchestrator) SaveAccount(ctx context.Context, account model.Account, password string) (model.Account, error) {
	saved, err := o.cache.UpsertAccount(ctx, account)
	if err != nil {
		return model.Account{}, err
	}
	if password != "" {
		if err := o.vault.Set(saved.ID, password); err != nil {
			return model.Account{}, err
		}
	}
	return saved, nil
}

// RemoveAccount deletes the account with its cached data and password.
func (o *Orchestrator) RemoveAccount(ctx context.Context, accountID string) error {
	if err := o.cache.DeleteAccount(ctx, accountID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return o.vault.Clear(accountID)
}
