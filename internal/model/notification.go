package model

import "time"

// Notification records an alert raised for a newly arrived VIP message.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `db:"id" json:"id"`

	// MessageID links this notification to the cached message row.
	MessageID int64 `db:"message_id" json:"message_id"`

	AccountID string `db:"account_id" json:"account_id"`
	Sender    string `db:"sender" json:"sender"`

	// Title and Text are the rendered notification content.
	Title string `db:"title" json:"title"`
	Text  string `db:"text" json:"text"`

	// Read indicates whether the user has seen this notification.
	Read bool `db:"read" json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFor renders the notification content for a VIP message.
func NotificationFor(m Message) Notification {
	text := m.Preview
	if text == "" {
		text = "New message from " + m.Sender
	}
	return Notification{
		MessageID: m.ID,
		AccountID: m.AccountID,
		Sender:    m.Sender,
		Title:     m.Subject,
		Text:      text,
		CreatedAt: time.Now(),
	}
}
