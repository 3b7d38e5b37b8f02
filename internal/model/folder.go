package model

import "strings"

// InboxServerID is the protocol path of the distinguished default folder.
const InboxServerID = "INBOX"

// Folder type flags, mirroring the capability bits reported for a
// mailbox by the server listing.
const (
	FolderHoldsMessages = 1 << 0
	FolderHoldsFolders  = 1 << 1
)

// Folder is a named mailbox container on one account.
type Folder struct {
	// AccountID is the owning account.
	AccountID string `db:"account_id" json:"account_id"`

	// ServerID is the protocol-level mailbox path.
	ServerID string `db:"server_id" json:"server_id"`

	// DisplayName is "Inbox" for the default folder, else the last path
	// segment of ServerID.
	DisplayName string `db:"display_name" json:"display_name"`

	// Selectable reports whether the folder can hold messages.
	Selectable bool `db:"selectable" json:"selectable"`

	// TypeFlags is the raw FolderHolds* capability bitmask.
	TypeFlags int `db:"type_flags" json:"type_flags"`
}

// IsInbox reports whether serverID names the default folder.
func IsInbox(serverID string) bool {
	return strings.EqualFold(serverID, InboxServerID)
}

// FolderDisplayName computes the human name of a folder from its full
// server path and hierarchy delimiter: "Inbox" for the default folder,
// else the last non-blank delimiter-separated segment.
func FolderDisplayName(serverID string, delim rune) string {
	if IsInbox(serverID) {
		return "Inbox"
	}
	if delim == 0 {
		delim = '/'
	}
	segments := strings.Split(serverID, string(delim))
	for i := len(segments) - 1; i >= 0; i-- {
		if strings.TrimSpace(segments[i]) != "" {
			return segments[i]
		}
	}
	return serverID
}
