// Package notify delivers alerts for newly arrived VIP messages.
package notify

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/nhle/priobox/internal/model"
)

// Sink receives one call per newly arrived VIP message. Delivery is
// fire-and-forget; a repeated call for the same message is acceptable.
type Sink interface {
	Notify(ctx context.Context, msg model.Message) error
}

// LogSink writes notifications to a logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, msg model.Message) error {
	n := model.NotificationFor(msg)
	s.logger.Info("new vip message",
		"account", msg.AccountID,
		"folder", msg.Folder,
		"from", n.Sender,
		"title", n.Title,
		"text", n.Text,
	)
	return nil
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n model.Notification) error
}

// StoreSink records notifications in the cache so they can be listed
// and marked read later.
type StoreSink struct {
	store NotificationStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

// Notify implements Sink.
func (s *StoreSink) Notify(ctx context.Context, msg model.Message) error {
	return s.store.CreateNotification(ctx, model.NotificationFor(msg))
}

// Multi fans a notification out to every sink. All sinks are attempted;
// their errors are joined.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, msg model.Message) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
