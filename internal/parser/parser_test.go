package parser

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const plainMessage = `From: Jane Doe <Jane@Example.com>
To: me@example.com
Subject: Quarterly numbers
Date: Mon, 02 Jan 2006 15:04:05 +0000
Content-Type: text/plain; charset=utf-8

   
Here are the numbers you asked for.
Second line.
`

const alternativeMessage = `From: boss@example.com
To: me@example.com
Subject: =?utf-8?q?Caf=C3=A9_meeting?=
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<html><body><p>Hello <b>team</b></p></body></html>
--b1--
`

const mixedMessage = `From: ops@example.com
Subject: Report
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Plain wins
--inner
Content-Type: text/html; charset=utf-8

<p>HTML loses</p>
--inner--
--outer
Content-Type: text/plain
Content-Disposition: attachment; filename="notes.txt"

attached text must not become the body
--outer--
`

func fixedParser(now time.Time) *Parser {
	return &Parser{now: func() time.Time { return now }}
}

func TestParsePlainMessage(t *testing.T) {
	received := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	p := New()

	msg, err := p.Parse("acc", "INBOX", Raw{
		UID:      42,
		SeqNum:   7,
		Received: received,
		Seen:     true,
		Literal:  crlf(plainMessage),
	})
	require.NoError(t, err)

	assert.Equal(t, "acc", msg.AccountID)
	assert.Equal(t, "42", msg.UID)
	assert.Equal(t, "INBOX", msg.Folder)
	assert.Equal(t, "Jane@Example.com", msg.Sender)
	assert.Equal(t, "Quarterly numbers", msg.Subject)
	assert.Equal(t, "Here are the numbers you asked for.", msg.Preview)
	assert.Contains(t, msg.Body, "Second line.")
	assert.Equal(t, received.UnixMilli(), msg.Timestamp)
	assert.True(t, msg.IsRead)
	assert.False(t, msg.IsVip)
}

func TestParseHTMLOnlyMessage(t *testing.T) {
	msg, err := New().Parse("acc", "INBOX", Raw{UID: 1, Literal: crlf(alternativeMessage)})
	require.NoError(t, err)

	assert.Equal(t, "Café meeting", msg.Subject)
	assert.NotContains(t, msg.Body, "<")
	assert.Contains(t, msg.Body, "Hello")
	assert.Contains(t, msg.Body, "team")
}

func TestParsePrefersPlainAndSkipsAttachments(t *testing.T) {
	msg, err := New().Parse("acc", "Reports", Raw{UID: 3, Literal: crlf(mixedMessage)})
	require.NoError(t, err)

	assert.Equal(t, "Plain wins", msg.Body)
	assert.Equal(t, "Reports", msg.Folder)
}

func TestParseFallsBackToSequenceNumber(t *testing.T) {
	msg, err := New().Parse("acc", "INBOX", Raw{SeqNum: 17, Literal: crlf(plainMessage)})
	require.NoError(t, err)
	assert.Equal(t, "17", msg.UID)
}

func TestParseTimestampFallbacks(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	p := fixedParser(now)

	withDate, err := p.Parse("acc", "INBOX", Raw{UID: 1, Literal: crlf(plainMessage)})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC).UnixMilli(), withDate.Timestamp,
		"Date header is used when the receipt time is absent")

	noDate, err := p.Parse("acc", "INBOX", Raw{UID: 2, Literal: crlf(alternativeMessage)})
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), noDate.Timestamp, "fetch time is the last resort")
}

func TestParseDropsMessagesWithoutSender(t *testing.T) {
	literal := crlf("Subject: orphan\nContent-Type: text/plain\n\nbody\n")

	_, err := New().Parse("acc", "INBOX", Raw{UID: 1, Literal: literal})
	assert.ErrorIs(t, err, ErrNoSender)
}

func TestParseUsesEnvelopeWhenHeadersMissing(t *testing.T) {
	msg, err := New().Parse("acc", "", Raw{
		UID:             5,
		EnvelopeFrom:    "env@example.com",
		EnvelopeSubject: "  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", msg.Sender)
	assert.Equal(t, NoSubject, msg.Subject)
	assert.Equal(t, "INBOX", msg.Folder, "folder defaults to INBOX")
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 200)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", ""},
		{"blank lines skipped", "\n  \n\tfirst real line  \nsecond", "first real line"},
		{"truncated to 140 runes", long, strings.Repeat("é", PreviewLength)},
		{"nfkc normalized", "ﬁle ready", "file ready"},
		{"expanded ligatures still truncated", strings.Repeat("ﬁ", 100), strings.Repeat("fi", PreviewLength/2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.body)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), PreviewLength)
		})
	}
}
