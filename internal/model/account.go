package model

import (
	"fmt"
	"strings"
	"time"
)

// Security selects how a connection to a mail server is negotiated.
type Security string

const (
	// SecuritySSLTLS negotiates TLS immediately on connect (implicit TLS).
	SecuritySSLTLS Security = "ssl_tls"

	// SecurityStartTLS connects in plaintext and upgrades with STARTTLS.
	SecurityStartTLS Security = "starttls"

	// SecurityNone leaves the connection unencrypted.
	SecurityNone Security = "none"
)

// ParseSecurity maps a user supplied security label to a Security value.
// Matching is case-insensitive and accepts the common spellings
// "SSL/TLS", "SSL" and "TLS" for implicit TLS.
func ParseSecurity(s string) (Security, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ssl_tls", "ssl/tls", "ssl", "tls", "imaps", "smtps":
		return SecuritySSLTLS, nil
	case "starttls", "start_tls":
		return SecurityStartTLS, nil
	case "none", "plain", "":
		return SecurityNone, nil
	default:
		return "", fmt.Errorf("unknown security mode %q", s)
	}
}

// String returns the display label of the security mode.
func (s Security) String() string {
	switch s {
	case SecuritySSLTLS:
		return "SSL/TLS"
	case SecurityStartTLS:
		return "STARTTLS"
	case SecurityNone:
		return "NONE"
	default:
		return string(s)
	}
}

// Endpoint is the host, port and security mode of one mail server.
type Endpoint struct {
	Server   string
	Port     int
	Security Security
}

// Addr returns the host:port dial address of the endpoint.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Server, e.Port)
}

// Account is the identity of one mailbox. The password is never stored
// on the account; it lives in the credential vault keyed by ID.
type Account struct {
	// ID is the stable opaque identifier (UUID) assigned by the cache.
	ID string `db:"id" json:"id"`

	// DisplayName is the human name used in the From header.
	DisplayName string `db:"display_name" json:"display_name"`

	// EmailAddress is the address messages are sent from.
	EmailAddress string `db:"email_address" json:"email_address"`

	IMAPServer   string   `db:"imap_server" json:"imap_server"`
	IMAPPort     int      `db:"imap_port" json:"imap_port"`
	IMAPSecurity Security `db:"imap_security" json:"imap_security"`

	SMTPServer   string   `db:"smtp_server" json:"smtp_server"`
	SMTPPort     int      `db:"smtp_port" json:"smtp_port"`
	SMTPSecurity Security `db:"smtp_security" json:"smtp_security"`

	// Username is the login name for both IMAP and SMTP.
	Username string `db:"username" json:"username"`

	// Signature is appended to outgoing mail when SignatureEnabled is set.
	Signature        string `db:"signature" json:"signature"`
	SignatureEnabled bool   `db:"signature_enabled" json:"signature_enabled"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IMAP returns the incoming server endpoint.
func (a Account) IMAP() Endpoint {
	return Endpoint{Server: a.IMAPServer, Port: a.IMAPPort, Security: a.IMAPSecurity}
}

// SMTP returns the outgoing server endpoint.
func (a Account) SMTP() Endpoint {
	return Endpoint{Server: a.SMTPServer, Port: a.SMTPPort, Security: a.SMTPSecurity}
}

// HasSignature reports whether a signature should be appended to
// outgoing mail.
func (a Account) HasSignature() bool {
	return a.SignatureEnabled && strings.TrimSpace(a.Signature) != ""
}
