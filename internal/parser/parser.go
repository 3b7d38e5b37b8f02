// Package parser turns raw RFC 5322 messages fetched from a mail server
// into normalized cache records.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
	"golang.org/x/text/unicode/norm"

	"github.com/nhle/priobox/internal/model"
)

// PreviewLength is the maximum number of characters kept in a preview.
const PreviewLength = 140

// NoSubject replaces a missing or blank subject.
const NoSubject = "(No subject)"

// ErrNoSender is returned for messages without a usable From address.
// Such messages cannot be rendered and are dropped by callers.
var ErrNoSender = errors.New("message has no sender address")

// Raw is one message as fetched from the server.
type Raw struct {
	// UID is the protocol unique id, or zero when the server reported none.
	UID uint32

	// SeqNum is the session-relative sequence number, used as the uid
	// when UID is zero.
	SeqNum uint32

	// Received is the server receipt time; zero falls back to the Date
	// header and then to the fetch time.
	Received time.Time

	// Seen reports the \Seen flag.
	Seen bool

	// Literal is the full RFC 5322 message.
	Literal []byte

	// EnvelopeFrom and EnvelopeSubject come from the server-parsed
	// envelope and are used when the literal headers are unusable.
	EnvelopeFrom    string
	EnvelopeSubject string
}

// Parser converts Raw messages into model.Message records.
type Parser struct {
	now func() time.Time
}

// New returns a Parser using the wall clock for missing timestamps.
func New() *Parser {
	return &Parser{now: time.Now}
}

// Parse normalizes raw into a Message for accountID and folder.
func (p *Parser) Parse(accountID, folder string, raw Raw) (model.Message, error) {
	uid := strconv.FormatUint(uint64(raw.UID), 10)
	if raw.UID == 0 {
		uid = strconv.FormatUint(uint64(raw.SeqNum), 10)
	}
	if folder == "" {
		folder = model.InboxServerID
	}

	msg := model.Message{
		AccountID: accountID,
		UID:       uid,
		Folder:    folder,
		IsRead:    raw.Seen,
	}

	var header mail.Header
	var body string
	if len(raw.Literal) > 0 {
		h, b, err := readEntity(raw.Literal)
		if err != nil {
			return model.Message{}, fmt.Errorf("parsing message %s: %w", uid, err)
		}
		header, body = h, b
	}

	msg.Sender = senderAddress(header, raw.EnvelopeFrom)
	if msg.Sender == "" {
		return model.Message{}, fmt.Errorf("message %s: %w", uid, ErrNoSender)
	}

	subject := raw.EnvelopeSubject
	if header.Header.Len() > 0 {
		if s, err := header.Subject(); err == nil && strings.TrimSpace(s) != "" {
			subject = s
		}
	}
	msg.Subject = clean(subject)
	if msg.Subject == "" {
		msg.Subject = NoSubject
	}

	msg.Body = body
	msg.Preview = Preview(body)

	received := raw.Received
	if received.IsZero() && header.Header.Len() > 0 {
		if d, err := header.Date(); err == nil {
			received = d
		}
	}
	if received.IsZero() {
		received = p.now()
	}
	msg.Timestamp = received.UnixMilli()

	return msg, nil
}

// readEntity parses the literal and extracts the display body: the first
// text/plain part, else the first text/html part converted to text.
func readEntity(literal []byte) (mail.Header, string, error) {
	entity, err := message.Read(bufio.NewReader(bytes.NewReader(literal)))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return mail.Header{}, "", err
	}

	header := mail.Header{Header: entity.Header}
	text, html := "", ""

	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}
		if part.MultipartReader() != nil {
			return nil
		}

		disp, _, _ := part.Header.ContentDisposition()
		if disp == "attachment" {
			return nil
		}

		mediaType, _, _ := part.Header.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}

		switch {
		case mediaType == "text/plain" && text == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return nil
			}
			text = string(b)
		case mediaType == "text/html" && html == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return nil
			}
			html = string(b)
		}
		return nil
	})
	if walkErr != nil && text == "" && html == "" {
		return header, "", walkErr
	}

	if text != "" {
		return header, clean(text), nil
	}
	if html != "" {
		return header, StripHTML(html), nil
	}
	return header, "", nil
}

// senderAddress returns the first From address of the header, falling back
// to the envelope sender.
func senderAddress(h mail.Header, envelopeFrom string) string {
	if h.Header.Len() > 0 {
		if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
			if addr := strings.TrimSpace(list[0].Address); addr != "" {
				return addr
			}
		}
	}
	return strings.TrimSpace(envelopeFrom)
}

// StripHTML renders an HTML body as plain text.
func StripHTML(html string) string {
	return clean(html2text.HTML2Text(html))
}

// Preview returns the first non-blank line of body, normalized and then
// truncated to PreviewLength characters.
func Preview(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = clean(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > PreviewLength {
			runes = runes[:PreviewLength]
		}
		return strings.TrimSpace(string(runes))
	}
	return ""
}

// clean applies NFKC normalization and trims surrounding whitespace.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(norm.NFKC.String(s))
}
