package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	display_name      TEXT NOT NULL DEFAULT '',
	email_address     TEXT NOT NULL,
	imap_server       TEXT NOT NULL,
	imap_port         INTEGER NOT NULL,
	imap_security     TEXT NOT NULL CHECK(imap_security IN ('ssl_tls', 'starttls', 'none')),
	smtp_server       TEXT NOT NULL,
	smtp_port         INTEGER NOT NULL,
	smtp_security     TEXT NOT NULL CHECK(smtp_security IN ('ssl_tls', 'starttls', 'none')),
	username          TEXT NOT NULL,
	signature         TEXT NOT NULL DEFAULT '',
	signature_enabled INTEGER NOT NULL DEFAULT 0 CHECK(signature_enabled IN (0, 1)),
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS folders (
	account_id   TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	server_id    TEXT NOT NULL,
	display_name TEXT NOT NULL,
	selectable   INTEGER NOT NULL DEFAULT 1 CHECK(selectable IN (0, 1)),
	type_flags   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account_id, server_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	uid        TEXT NOT NULL,
	folder     TEXT NOT NULL DEFAULT 'INBOX',
	sender     TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	preview    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	timestamp  INTEGER NOT NULL,
	is_read    INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	is_vip     INTEGER NOT NULL DEFAULT 0 CHECK(is_vip IN (0, 1)),
	UNIQUE(account_id, folder, uid)
);

CREATE INDEX IF NOT EXISTS idx_messages_account_folder_ts
	ON messages(account_id, folder, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_account_vip
	ON messages(account_id, is_vip);

CREATE TABLE IF NOT EXISTS vip_senders (
	account_id    TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	email_address TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, email_address)
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	message_id INTEGER NOT NULL,
	account_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	title      TEXT NOT NULL,
	text       TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_account_sender
	ON messages(account_id, sender COLLATE NOCASE);

CREATE INDEX IF NOT EXISTS idx_notifications_account
	ON notifications(account_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE messages ADD COLUMN sender_norm TEXT NOT NULL DEFAULT '';

-- ASCII-only backfill; every row kept by the next sync is rewritten with
-- the Unicode-folded address.
UPDATE messages SET sender_norm = LOWER(TRIM(sender));

CREATE INDEX IF NOT EXISTS idx_messages_account_sender_norm
	ON messages(account_id, sender_norm);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
