package model

import (
	"strings"
	"time"
)

// VipSender flags an address on one account as VIP. Its existence is the
// source of truth for Message.IsVip.
type VipSender struct {
	AccountID    string    `db:"account_id" json:"account_id"`
	EmailAddress string    `db:"email_address" json:"email_address"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NormalizeAddress returns the comparison form of an email address.
func NormalizeAddress(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
