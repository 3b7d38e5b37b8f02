// Package vip derives the VIP flag of messages from an account's VIP
// senders and toggles VIP membership.
package vip

import (
	"context"
	"fmt"

	"github.com/nhle/priobox/internal/model"
)

// Set is the normalized VIP address set of one account.
type Set map[string]struct{}

// NewSet builds a Set from the account's VIP senders.
func NewSet(senders []model.VipSender) Set {
	s := make(Set, len(senders))
	for _, v := range senders {
		s[model.NormalizeAddress(v.EmailAddress)] = struct{}{}
	}
	return s
}

// Contains reports whether email is in the set, ignoring case.
func (s Set) Contains(email string) bool {
	_, ok := s[model.NormalizeAddress(email)]
	return ok
}

// IsVip reports whether sender is one of the VIP addresses.
func IsVip(sender string, set Set) bool {
	return set.Contains(sender)
}

// Stamp sets IsVip on every message from the current set. The slice is
// modified in place and returned.
func Stamp(msgs []model.Message, set Set) []model.Message {
	for i := range msgs {
		msgs[i].IsVip = IsVip(msgs[i].Sender, set)
	}
	return msgs
}

// Store is the persistence the tagger needs.
type Store interface {
	ListVipSenders(ctx context.Context, accountID string) ([]model.VipSender, error)
	GetVipSender(ctx context.Context, accountID, email string) (*model.VipSender, error)

	// SetVipSender adds or removes the sender and retags the account's
	// cached messages from that sender in one transaction.
	SetVipSender(ctx context.Context, accountID, email string, isVip bool) error
}

// Tagger reads and mutates VIP membership through a Store.
type Tagger struct {
	store Store
}

// NewTagger creates a Tagger backed by store.
func NewTagger(store Store) *Tagger {
	return &Tagger{store: store}
}

// Set loads the current VIP set of accountID.
func (t *Tagger) Set(ctx context.Context, accountID string) (Set, error) {
	senders, err := t.store.ListVipSenders(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing vip senders: %w", err)
	}
	return NewSet(senders), nil
}

// Tag stamps msgs with the current VIP set of accountID.
func (t *Tagger) Tag(ctx context.Context, accountID string, msgs []model.Message) ([]model.Message, error) {
	set, err := t.Set(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return Stamp(msgs, set), nil
}

// Toggle flips the VIP membership of email for accountID and returns the
// new state.
func (t *Tagger) Toggle(ctx context.Context, accountID, email string) (bool, error) {
	email = model.NormalizeAddress(email)
	if email == "" {
		return false, fmt.Errorf("vip sender address must not be empty")
	}

	existing, err := t.store.GetVipSender(ctx, accountID, email)
	if err != nil {
		return false, fmt.Errorf("looking up vip sender: %w", err)
	}

	isVip := existing == nil
	if err := t.store.SetVipSender(ctx, accountID, email, isVip); err != nil {
		return false, fmt.Errorf("updating vip sender %s: %w", email, err)
	}
	return isVip, nil
}
