package model

import "time"

// Message is one email cached for an account folder. (AccountID, Folder,
// UID) is unique.
type Message struct {
	// ID is the cache row identifier. Zero until the message is stored.
	ID int64 `db:"id" json:"id"`

	AccountID string `db:"account_id" json:"account_id"`

	// UID is the protocol-assigned identifier. When the server provides
	// none the message sequence number is used, which is not stable
	// across sessions.
	UID string `db:"uid" json:"uid"`

	// Folder is the ServerID of the containing folder.
	Folder string `db:"folder" json:"folder"`

	Sender  string `db:"sender" json:"sender"`
	Subject string `db:"subject" json:"subject"`

	// Preview is the first non-blank body line, at most 140 characters.
	Preview string `db:"preview" json:"preview"`
	Body    string `db:"body" json:"body"`

	// Timestamp is the server receipt time in epoch milliseconds.
	Timestamp int64 `db:"timestamp" json:"timestamp"`

	IsRead bool `db:"is_read" json:"is_read"`

	// IsVip is derived from the sender and the account's VIP senders.
	IsVip bool `db:"is_vip" json:"is_vip"`
}

// Time returns Timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Key identifies the message within its account independently of the
// cache row id.
func (m Message) Key() string {
	return m.Folder + "\x00" + m.UID
}

// Attachment is a file sent along with an outgoing message. Data is read
// from Path when empty; an attachment without data is dropped.
type Attachment struct {
	FileName string
	MimeType string
	Data     []byte
	Path     string

	// Inline attachments are referenced from the HTML body via cid:ContentID.
	Inline    bool
	ContentID string
}

// Outgoing is a fully composed message handed to the dispatcher.
type Outgoing struct {
	To          []string
	Subject     string
	BodyHTML    string
	BodyText    string
	Attachments []Attachment
}
