package sync

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/priobox/internal/credential"
	"github.com/nhle/priobox/internal/logging"
	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/store"
	"github.com/nhle/priobox/tests/testutil"
)

// fakeTransport serves scripted mailbox contents per account and folder.
type fakeTransport struct {
	mu        gosync.Mutex
	folders   map[string][]model.Folder
	messages  map[string][]model.Message
	failing   map[string]error
	readState []string
	readErr   error
	fetches   int

	delay    time.Duration
	inFlight map[string]*atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		folders:  map[string][]model.Folder{},
		messages: map[string][]model.Message{},
		failing:  map[string]error{},
		inFlight: map[string]*atomic.Int32{},
	}
}

func folderKey(accountID, folder string) string { return accountID + "/" + folder }

func (f *fakeTransport) setMessages(accountID, folder string, msgs ...model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[folderKey(accountID, folder)] = msgs
}

func (f *fakeTransport) fail(accountID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[accountID] = err
}

func (f *fakeTransport) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeTransport) TestConnection(_ context.Context, account model.Account, password string) error {
	if password != "secret" {
		return errors.New("bad password")
	}
	return nil
}

func (f *fakeTransport) ListFolders(_ context.Context, account model.Account, _ string) ([]model.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[account.ID]; err != nil {
		return nil, err
	}
	if folders, ok := f.folders[account.ID]; ok {
		return folders, nil
	}
	return []model.Folder{{
		AccountID:   account.ID,
		ServerID:    model.InboxServerID,
		DisplayName: "Inbox",
		Selectable:  true,
		TypeFlags:   model.FolderHoldsMessages,
	}}, nil
}

func (f *fakeTransport) FetchMessages(
	_ context.Context, account model.Account, _ string, folder string, maxCount int,
) ([]model.Message, error) {
	key := folderKey(account.ID, folder)

	f.mu.Lock()
	f.fetches++
	err := f.failing[account.ID]
	msgs := append([]model.Message(nil), f.messages[key]...)
	counter, ok := f.inFlight[key]
	if !ok {
		counter = &atomic.Int32{}
		f.inFlight[key] = counter
	}
	delay := f.delay
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	n := counter.Add(1)
	defer counter.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(delay)

	if len(msgs) > maxCount {
		msgs = msgs[:maxCount]
	}
	return msgs, nil
}

func (f *fakeTransport) SetReadState(
	_ context.Context, _ model.Account, _ string, folder, uid string, isRead bool,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return f.readErr
	}
	state := "unread"
	if isRead {
		state = "read"
	}
	f.readState = append(f.readState, folder+"/"+uid+"="+state)
	return nil
}

// fakeDispatcher records sent messages.
type fakeDispatcher struct {
	mu   gosync.Mutex
	sent []model.Outgoing
	err  error
}

func (d *fakeDispatcher) TestConnection(context.Context, model.Account, string) error { return d.err }

func (d *fakeDispatcher) Send(_ context.Context, _ model.Account, _ string, out model.Outgoing) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, out)
	return nil
}

// recordingSink collects notified messages.
type recordingSink struct {
	mu   gosync.Mutex
	msgs []model.Message
}

func (r *recordingSink) Notify(_ context.Context, msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSink) take() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type harness struct {
	store      *store.SQLiteStore
	vault      *credential.Vault
	transport  *fakeTransport
	dispatcher *fakeDispatcher
	orch       *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:      testutil.NewTestStore(t),
		vault:      credential.NewMemoryVault(),
		transport:  newFakeTransport(),
		dispatcher: &fakeDispatcher{},
	}
	h.orch = NewOrchestrator(h.transport, h.dispatcher, h.store, h.vault, logging.Discard(), Options{MaxMessages: 50})
	return h
}

// account stores an account with password "secret".
func (h *harness) account(t *testing.T, email string) model.Account {
	t.Helper()

	account, err := h.orch.SaveAccount(context.Background(), testutil.Account(email), "secret")
	if err != nil {
		t.Fatalf("saving account: %v", err)
	}
	return account
}

func remote(uid, sender string, ts int64) model.Message {
	return model.Message{
		UID:       uid,
		Folder:    model.InboxServerID,
		Sender:    sender,
		Subject:   "Subject " + uid,
		Preview:   "Preview " + uid,
		Body:      "Body " + uid,
		Timestamp: ts,
	}
}
