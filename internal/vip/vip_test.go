package vip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/model"
)

type memStore struct {
	senders map[string]bool
	calls   int
}

func (m *memStore) ListVipSenders(_ context.Context, accountID string) ([]model.VipSender, error) {
	var out []model.VipSender
	for email := range m.senders {
		out = append(out, model.VipSender{AccountID: accountID, EmailAddress: email})
	}
	return out, nil
}

func (m *memStore) GetVipSender(_ context.Context, accountID, email string) (*model.VipSender, error) {
	if !m.senders[email] {
		return nil, nil
	}
	return &model.VipSender{AccountID: accountID, EmailAddress: email}, nil
}

func (m *memStore) SetVipSender(_ context.Context, _ string, email string, isVip bool) error {
	m.calls++
	if isVip {
		m.senders[email] = true
	} else {
		delete(m.senders, email)
	}
	return nil
}

func TestIsVipIgnoresCase(t *testing.T) {
	set := NewSet([]model.VipSender{{EmailAddress: "Boss@Example.com"}})

	assert.True(t, IsVip("boss@example.com", set))
	assert.True(t, IsVip(" BOSS@EXAMPLE.COM ", set))
	assert.False(t, IsVip("intern@example.com", set))
	assert.False(t, IsVip("boss@example.com", nil))
}

func TestStamp(t *testing.T) {
	set := NewSet([]model.VipSender{{EmailAddress: "boss@example.com"}})
	msgs := []model.Message{
		{UID: "1", Sender: "Boss@example.com"},
		{UID: "2", Sender: "other@example.com", IsVip: true},
	}

	got := Stamp(msgs, set)
	assert.True(t, got[0].IsVip)
	assert.False(t, got[1].IsVip)
}

func TestToggle(t *testing.T) {
	store := &memStore{senders: map[string]bool{}}
	tagger := NewTagger(store)
	ctx := context.Background()

	on, err := tagger.Toggle(ctx, "acc", "Boss@Example.com")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, store.senders["boss@example.com"])

	msgs, err := tagger.Tag(ctx, "acc", []model.Message{{Sender: "BOSS@example.com"}})
	require.NoError(t, err)
	assert.True(t, msgs[0].IsVip)

	off, err := tagger.Toggle(ctx, "acc", "boss@example.com")
	require.NoError(t, err)
	assert.False(t, off)
	assert.Empty(t, store.senders)
	assert.Equal(t, 2, store.calls)
}

func TestToggleRejectsEmptyAddress(t *testing.T) {
	_, err := NewTagger(&memStore{senders: map[string]bool{}}).Toggle(context.Background(), "acc", "  ")
	assert.Error(t, err)
}
