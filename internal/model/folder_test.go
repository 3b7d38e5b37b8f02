package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		serverID string
		delim    rune
		want     string
	}{
		{"inbox upper", "INBOX", '/', "Inbox"},
		{"inbox mixed case", "Inbox", '.', "Inbox"},
		{"nested slash", "[Gmail]/Sent Mail", '/', "Sent Mail"},
		{"nested dot", "INBOX.Archive.2024", '.', "2024"},
		{"top level", "Drafts", '/', "Drafts"},
		{"no delimiter reported", "Work/Reports", 0, "Reports"},
		{"trailing delimiter", "Archive/", '/', "Archive"},
		{"nested trailing delimiter", "Work/Projects//", '/', "Projects"},
		{"blank last segment", "Work/  ", '/', "Work"},
		{"only delimiters", "//", '/', "//"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FolderDisplayName(tt.serverID, tt.delim))
		})
	}
}

func TestParseSecurity(t *testing.T) {
	tests := []struct {
		in      string
		want    Security
		wantErr bool
	}{
		{"SSL/TLS", SecuritySSLTLS, false},
		{"ssl", SecuritySSLTLS, false},
		{"STARTTLS", SecurityStartTLS, false},
		{"none", SecurityNone, false},
		{"", SecurityNone, false},
		{"quantum", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSecurity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccountHasSignature(t *testing.T) {
	acc := Account{Signature: "Best, Jane", SignatureEnabled: true}
	assert.True(t, acc.HasSignature())

	acc.SignatureEnabled = false
	assert.False(t, acc.HasSignature())

	acc = Account{Signature: "   ", SignatureEnabled: true}
	assert.False(t, acc.HasSignature())
}
