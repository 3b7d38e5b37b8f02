package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/model"
)

var vipMessage = model.Message{
	ID:        7,
	AccountID: "acc",
	Folder:    "INBOX",
	Sender:    "boss@example.com",
	Subject:   "Budget",
	Preview:   "Please review",
}

type recordingStore struct {
	created []model.Notification
}

func (r *recordingStore) CreateNotification(_ context.Context, n model.Notification) error {
	r.created = append(r.created, n)
	return nil
}

type failingSink struct{ err error }

func (f failingSink) Notify(context.Context, model.Message) error { return f.err }

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(log.New(&buf))

	require.NoError(t, sink.Notify(context.Background(), vipMessage))
	assert.Contains(t, buf.String(), "new vip message")
	assert.Contains(t, buf.String(), "boss@example.com")
}

func TestStoreSink(t *testing.T) {
	store := &recordingStore{}

	require.NoError(t, NewStoreSink(store).Notify(context.Background(), vipMessage))
	require.Len(t, store.created, 1)
	assert.Equal(t, int64(7), store.created[0].MessageID)
	assert.Equal(t, "Budget", store.created[0].Title)
	assert.Equal(t, "Please review", store.created[0].Text)
}

func TestStoreSinkFallsBackToSenderText(t *testing.T) {
	store := &recordingStore{}
	msg := vipMessage
	msg.Preview = ""

	require.NoError(t, NewStoreSink(store).Notify(context.Background(), msg))
	assert.Equal(t, "New message from boss@example.com", store.created[0].Text)
}

func TestMultiAttemptsEverySink(t *testing.T) {
	store := &recordingStore{}
	boom := errors.New("boom")

	err := Multi{failingSink{boom}, NewStoreSink(store)}.Notify(context.Background(), vipMessage)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, store.created, 1)
}

func TestCommandSinkInvocation(t *testing.T) {
	tests := []struct {
		name    string
		command string
		goos    string
		want    []string
	}{
		{
			name: "linux",
			goos: "linux",
			want: []string{"notify-send", "--app-name=priobox", "Budget", "Please review"},
		},
		{
			name: "darwin",
			goos: "darwin",
			want: []string{"osascript", "-e", `display notification "Please review" with title "Budget" subtitle "priobox"`},
		},
		{
			name:    "custom command",
			command: "my-notify --urgent",
			goos:    "linux",
			want:    []string{"my-notify", "--urgent", "Budget", "Please review"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			sink := NewCommandSink("priobox", tt.command)
			sink.goos = tt.goos
			sink.run = func(_ context.Context, name string, args ...string) error {
				got = append([]string{name}, args...)
				return nil
			}

			require.NoError(t, sink.Notify(context.Background(), vipMessage))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeAppleScript(t *testing.T) {
	assert.Equal(t, `say \"hi\" \\ bye`, escapeAppleScript(`say "hi" \ bye`))
}
