package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/parser"
)

type imapFixture struct {
	user    *imapmemserver.User
	account model.Account
	base    time.Time
}

func startIMAPServer(t *testing.T) *imapFixture {
	t.Helper()
	return startIMAPServerWith(t, model.SecurityNone)
}

// startIMAPServerWith serves an in-memory mailbox with the given security:
// a TLS listener for SSL/TLS and a STARTTLS capable server for STARTTLS.
func startIMAPServerWith(t *testing.T, security model.Security) *imapFixture {
	t.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser("jane", "secret")
	_ = user.Create(model.InboxServerID, nil)
	mem.AddUser(user)

	opts := &imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps:         imap.CapSet{imap.CapIMAP4rev1: {}},
		InsecureAuth: true,
	}
	if security == model.SecurityStartTLS {
		opts.TLSConfig = testTLSConfig(t)
	}
	srv := imapserver.New(opts)

	ln := listenLoopback(t, security)

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return &imapFixture{
		user: user,
		account: model.Account{
			ID:           "acc-1",
			EmailAddress: "jane@example.com",
			IMAPServer:   "127.0.0.1",
			IMAPPort:     ln.Addr().(*net.TCPAddr).Port,
			IMAPSecurity: security,
			Username:     "jane",
		},
		base: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *imapFixture) appendMessage(t *testing.T, mailbox string, n int, seen bool) {
	t.Helper()

	raw := fmt.Sprintf("From: sender%d@example.com\r\n"+
		"To: jane@example.com\r\n"+
		"Subject: Message %d\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"Body of message %d\r\n", n, n, n)

	opts := &imap.AppendOptions{Time: f.base.Add(time.Duration(n) * time.Minute)}
	if seen {
		opts.Flags = []imap.Flag{imap.FlagSeen}
	}
	_, err := f.user.Append(mailbox, bytes.NewReader([]byte(raw)), opts)
	require.NoError(t, err)
}

func newTestIMAP() *IMAPTransport {
	return NewIMAPTransport(NewDialer(Options{}), parser.New(), log.New(io.Discard))
}

func TestIMAPFetchMessagesWindow(t *testing.T) {
	f := startIMAPServer(t)
	for i := 1; i <= 5; i++ {
		f.appendMessage(t, model.InboxServerID, i, i == 5)
	}

	tr := newTestIMAP()
	msgs, err := tr.FetchMessages(context.Background(), f.account, "secret", model.InboxServerID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "Message 5", msgs[0].Subject)
	assert.Equal(t, "Message 4", msgs[1].Subject)
	assert.Equal(t, "Message 3", msgs[2].Subject)
	for i := 1; i < len(msgs); i++ {
		assert.GreaterOrEqual(t, msgs[i-1].Timestamp, msgs[i].Timestamp)
	}

	assert.True(t, msgs[0].IsRead)
	assert.False(t, msgs[1].IsRead)
	assert.Equal(t, "sender5@example.com", msgs[0].Sender)
	assert.Equal(t, "Body of message 5", msgs[0].Preview)
	assert.Equal(t, f.account.ID, msgs[0].AccountID)
	assert.Equal(t, model.InboxServerID, msgs[0].Folder)
	assert.NotEmpty(t, msgs[0].UID)
}

func TestIMAPFetchEmptyFolder(t *testing.T) {
	f := startIMAPServer(t)

	msgs, err := newTestIMAP().FetchMessages(context.Background(), f.account, "secret", model.InboxServerID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestIMAPFetchFallsBackToInbox(t *testing.T) {
	f := startIMAPServer(t)
	f.appendMessage(t, model.InboxServerID, 1, false)

	msgs, err := newTestIMAP().FetchMessages(context.Background(), f.account, "secret", "Missing", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Missing", msgs[0].Folder)
}

func TestIMAPListFolders(t *testing.T) {
	f := startIMAPServer(t)
	require.NoError(t, f.user.Create("Archive", nil))
	require.NoError(t, f.user.Create("Work/Projects", nil))

	folders, err := newTestIMAP().ListFolders(context.Background(), f.account, "secret")
	require.NoError(t, err)

	names := map[string]string{}
	for _, folder := range folders {
		names[folder.ServerID] = folder.DisplayName
		assert.Equal(t, f.account.ID, folder.AccountID)
	}
	assert.Equal(t, "Inbox", names[model.InboxServerID])
	assert.Equal(t, "Archive", names["Archive"])
	assert.Equal(t, "Projects", names["Work/Projects"])
}

func TestIMAPSetReadState(t *testing.T) {
	f := startIMAPServer(t)
	f.appendMessage(t, model.InboxServerID, 1, false)

	tr := newTestIMAP()
	ctx := context.Background()

	msgs, err := tr.FetchMessages(ctx, f.account, "secret", model.InboxServerID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.False(t, msgs[0].IsRead)

	require.NoError(t, tr.SetReadState(ctx, f.account, "secret", model.InboxServerID, msgs[0].UID, true))

	msgs, err = tr.FetchMessages(ctx, f.account, "secret", model.InboxServerID, 10)
	require.NoError(t, err)
	assert.True(t, msgs[0].IsRead)

	require.NoError(t, tr.SetReadState(ctx, f.account, "secret", model.InboxServerID, msgs[0].UID, false))

	msgs, err = tr.FetchMessages(ctx, f.account, "secret", model.InboxServerID, 10)
	require.NoError(t, err)
	assert.False(t, msgs[0].IsRead)
}

func TestIMAPSetReadStateInvalidUID(t *testing.T) {
	err := newTestIMAP().SetReadState(context.Background(), model.Account{}, "", model.InboxServerID, "abc", true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "abc"))
}

func TestIMAPLoginFailure(t *testing.T) {
	f := startIMAPServer(t)

	err := newTestIMAP().TestConnection(context.Background(), f.account, "wrong")
	require.Error(t, err)
	assert.True(t, mailerr.IsAuth(err))

	require.NoError(t, newTestIMAP().TestConnection(context.Background(), f.account, "secret"))
}

func TestFetchWindow(t *testing.T) {
	tests := []struct {
		total       uint32
		max         int
		start, stop uint32
		ok          bool
	}{
		{0, 10, 0, 0, false},
		{5, 10, 1, 5, true},
		{10, 10, 1, 10, true},
		{120, 50, 71, 120, true},
		{120, 0, 71, 120, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.max), func(t *testing.T) {
			start, stop, ok := FetchWindow(tt.total, tt.max)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.stop, stop)
		})
	}
}

func TestIMAPSecurityModesYieldSameMessages(t *testing.T) {
	modes := []model.Security{model.SecuritySSLTLS, model.SecurityStartTLS, model.SecurityNone}

	fetched := make(map[model.Security][]model.Message, len(modes))
	for _, security := range modes {
		f := startIMAPServerWith(t, security)
		f.appendMessage(t, model.InboxServerID, 1, false)
		f.appendMessage(t, model.InboxServerID, 2, true)

		tr := NewIMAPTransport(NewDialer(Options{InsecureSkipVerify: true}), parser.New(), log.New(io.Discard))
		require.NoError(t, tr.TestConnection(context.Background(), f.account, "secret"), security)

		msgs, err := tr.FetchMessages(context.Background(), f.account, "secret", model.InboxServerID, 10)
		require.NoError(t, err, security)
		require.Len(t, msgs, 2, security)
		fetched[security] = msgs
	}

	assert.Equal(t, fetched[model.SecurityNone], fetched[model.SecuritySSLTLS])
	assert.Equal(t, fetched[model.SecurityNone], fetched[model.SecurityStartTLS])
}
