package transport

import (
	"cmp"
	"context"
	"fmt"
	"mime"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
	"github.com/nhle/priobox/internal/parser"
)

const protoIMAP = "imap"

// IMAPTransport fetches folders and messages over IMAP. Every call opens
// its own connection and closes it before returning.
type IMAPTransport struct {
	dialer *Dialer
	parser *parser.Parser
	logger *log.Logger
}

// NewIMAPTransport creates an IMAP transport.
func NewIMAPTransport(dialer *Dialer, p *parser.Parser, logger *log.Logger) *IMAPTransport {
	return &IMAPTransport{dialer: dialer, parser: p, logger: logger}
}

// connect dials the account's IMAP server, negotiates security and logs
// in. The caller must call the returned cleanup function.
func (t *IMAPTransport) connect(
	ctx context.Context, account model.Account, password string,
) (*imapclient.Client, func(), error) {
	params, err := t.dialer.Params(account.IMAP())
	if err != nil {
		return nil, nil, fmt.Errorf("imap settings for %s: %w", account.EmailAddress, err)
	}

	conn, err := t.dialer.Dial(ctx, protoIMAP, params)
	if err != nil {
		return nil, nil, err
	}

	opts := &imapclient.Options{
		TLSConfig:   params.TLSConfig,
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}

	var client *imapclient.Client
	if params.Mode == ModeStartTLS {
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			conn.Close()
			return nil, nil, mailerr.Transport(protoIMAP, params.Addr(), "starttls", err)
		}
	} else {
		client = imapclient.New(conn, opts)
	}

	stopWatch := closeOnCancel(ctx, client)
	cleanup := func() {
		stopWatch()
		_ = client.Logout().Wait()
		_ = client.Close()
	}

	if err := client.Login(account.Username, password).Wait(); err != nil {
		cleanup()
		return nil, nil, &mailerr.AuthError{
			Protocol: protoIMAP,
			Username: account.Username,
			Err:      err,
		}
	}

	t.logger.Debug("imap connected",
		"account", account.ID, "addr", params.Addr(), "mode", params.Mode)

	return client, cleanup, nil
}

// TestConnection verifies that the account can log in.
func (t *IMAPTransport) TestConnection(
	ctx context.Context, account model.Account, password string,
) error {
	client, cleanup, err := t.connect(ctx, account, password)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Noop().Wait(); err != nil {
		return mailerr.Transport(protoIMAP, account.IMAP().Addr(), "noop", err)
	}
	return nil
}

// ListFolders lists every mailbox recursively and keeps the ones that can
// hold messages.
func (t *IMAPTransport) ListFolders(
	ctx context.Context, account model.Account, password string,
) ([]model.Folder, error) {
	client, cleanup, err := t.connect(ctx, account, password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	mailboxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return nil, mailerr.Transport(protoIMAP, account.IMAP().Addr(), "list", err)
	}

	folders := make([]model.Folder, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		flags := typeFlags(mbox.Attrs)
		if flags&model.FolderHoldsMessages == 0 {
			continue
		}
		folders = append(folders, model.Folder{
			AccountID:   account.ID,
			ServerID:    mbox.Mailbox,
			DisplayName: model.FolderDisplayName(mbox.Mailbox, mbox.Delim),
			Selectable:  true,
			TypeFlags:   flags,
		})
	}

	return folders, nil
}

// typeFlags maps LIST attributes onto the folder capability bitmask.
func typeFlags(attrs []imap.MailboxAttr) int {
	flags := model.FolderHoldsMessages | model.FolderHoldsFolders
	for _, attr := range attrs {
		switch attr {
		case imap.MailboxAttrNoSelect, imap.MailboxAttrNonExistent:
			flags &^= model.FolderHoldsMessages
		case imap.MailboxAttrNoInferiors:
			flags &^= model.FolderHoldsFolders
		}
	}
	return flags
}

// FetchWindow returns the sequence range holding the last maxCount of
// total messages. ok is false when the folder is empty.
func FetchWindow(total uint32, maxCount int) (start, stop uint32, ok bool) {
	if total == 0 {
		return 0, 0, false
	}
	if maxCount <= 0 {
		maxCount = DefaultIMAPLimit
	}
	start = 1
	if total > uint32(maxCount) {
		start = total - uint32(maxCount) + 1
	}
	return start, total, true
}

// FetchMessages returns up to maxCount of the newest messages of folder,
// ordered by receipt time, newest first. The folder is opened read-only;
// when it cannot be opened INBOX is used instead. Every message carries
// the requested folder id.
func (t *IMAPTransport) FetchMessages(
	ctx context.Context, account model.Account, password, folder string, maxCount int,
) ([]model.Message, error) {
	client, cleanup, err := t.connect(ctx, account, password)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	addr := account.IMAP().Addr()

	selected, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		if model.IsInbox(folder) {
			return nil, mailerr.Transport(protoIMAP, addr, "select "+folder, err)
		}
		t.logger.Warn("folder not selectable, falling back to inbox",
			"account", account.ID, "folder", folder, "err", err)
		selected, err = client.Select(model.InboxServerID, &imap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			return nil, mailerr.Transport(protoIMAP, addr, "select "+model.InboxServerID, err)
		}
	}

	start, stop, ok := FetchWindow(selected.NumMessages, maxCount)
	if !ok {
		return []model.Message{}, nil
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(start, stop)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	buffers, err := client.Fetch(seqSet, &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, mailerr.Transport(protoIMAP, addr, "fetch", err)
	}

	messages := make([]model.Message, 0, len(buffers))
	for _, buf := range buffers {
		msg, err := t.parser.Parse(account.ID, folder, rawFromBuffer(buf, bodySection))
		if err != nil {
			t.logger.Warn("skipping unparseable message",
				"account", account.ID, "folder", folder, "seq", buf.SeqNum, "err", err)
			continue
		}
		messages = append(messages, msg)
	}

	slices.SortStableFunc(messages, func(a, b model.Message) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	if len(messages) > maxCount && maxCount > 0 {
		messages = messages[:maxCount]
	}

	return messages, nil
}

// rawFromBuffer adapts a fetched message for the parser.
func rawFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) parser.Raw {
	raw := parser.Raw{
		UID:      uint32(buf.UID),
		SeqNum:   buf.SeqNum,
		Received: buf.InternalDate,
		Literal:  buf.FindBodySection(section),
	}

	if buf.Envelope != nil {
		raw.EnvelopeSubject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			raw.EnvelopeFrom = buf.Envelope.From[0].Addr()
		}
	}

	for _, flag := range buf.Flags {
		if flag == imap.FlagSeen {
			raw.Seen = true
		}
	}

	return raw
}

// SetReadState adds or removes the \Seen flag of the message uid in folder.
func (t *IMAPTransport) SetReadState(
	ctx context.Context, account model.Account, password, folder, uid string, isRead bool,
) error {
	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid message uid %q: %w", uid, err)
	}

	client, cleanup, err := t.connect(ctx, account, password)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := account.IMAP().Addr()
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return mailerr.Transport(protoIMAP, addr, "select "+folder, err)
	}

	op := imap.StoreFlagsAdd
	if !isRead {
		op = imap.StoreFlagsDel
	}

	err = client.Store(imap.UIDSetNum(imap.UID(n)), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	if err != nil {
		return mailerr.Transport(protoIMAP, addr, "store", err)
	}
	return nil
}
