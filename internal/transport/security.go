// Package transport talks IMAP and SMTP to mail servers on behalf of one
// account at a time.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
)

const (
	// DefaultDialTimeout bounds TCP connect plus TLS handshake.
	DefaultDialTimeout = 30 * time.Second

	// DefaultIMAPLimit is the default per-folder fetch window.
	DefaultIMAPLimit = 50
)

// Mode is the connection negotiation selected by an account's Security.
type Mode int

const (
	// ModeImplicitTLS negotiates TLS immediately after TCP connect.
	ModeImplicitTLS Mode = iota

	// ModeStartTLS connects in plaintext and upgrades with STARTTLS.
	ModeStartTLS

	// ModePlain never encrypts.
	ModePlain
)

func (m Mode) String() string {
	switch m {
	case ModeImplicitTLS:
		return "implicit-tls"
	case ModeStartTLS:
		return "starttls"
	default:
		return "plain"
	}
}

// ConnParams are the negotiated parameters for one server connection.
type ConnParams struct {
	Host string
	Port int
	Mode Mode

	// TLSConfig is nil for ModePlain.
	TLSConfig *tls.Config
}

// Addr returns the host:port dial address.
func (p ConnParams) Addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprint(p.Port))
}

// Options configure a Dialer.
type Options struct {
	// Timeout bounds the TCP connect. Zero means DefaultDialTimeout.
	Timeout time.Duration

	// ConnectionsPerSec throttles new connections. Zero disables it.
	ConnectionsPerSec float64

	// InsecureSkipVerify disables certificate verification. Only meant
	// for local test servers.
	InsecureSkipVerify bool
}

// Dialer derives connection parameters from account settings and opens
// throttled TCP connections. It is shared by the IMAP and SMTP sides so
// both apply the same three-way security selection.
type Dialer struct {
	timeout  time.Duration
	insecure bool
	limiter  *rate.Limiter
}

// NewDialer creates a Dialer from opts.
func NewDialer(opts Options) *Dialer {
	d := &Dialer{
		timeout:  opts.Timeout,
		insecure: opts.InsecureSkipVerify,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultDialTimeout
	}
	if opts.ConnectionsPerSec > 0 {
		burst := int(opts.ConnectionsPerSec)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.ConnectionsPerSec), burst)
	}
	return d
}

// Params resolves the connection parameters for endpoint. An empty host or
// a port outside 1..65535 is a configuration error.
func (d *Dialer) Params(endpoint model.Endpoint) (ConnParams, error) {
	host := strings.TrimSpace(endpoint.Server)
	if host == "" {
		return ConnParams{}, mailerr.InvalidSetting("server", "host must not be empty")
	}
	if endpoint.Port <= 0 || endpoint.Port > 65535 {
		return ConnParams{}, mailerr.InvalidSetting(
			"port", fmt.Sprintf("%d is outside 1..65535", endpoint.Port),
		)
	}

	p := ConnParams{Host: host, Port: endpoint.Port}
	switch endpoint.Security {
	case model.SecuritySSLTLS:
		p.Mode = ModeImplicitTLS
	case model.SecurityStartTLS:
		p.Mode = ModeStartTLS
	case model.SecurityNone:
		p.Mode = ModePlain
	default:
		return ConnParams{}, mailerr.InvalidSetting(
			"security", fmt.Sprintf("unknown mode %q", endpoint.Security),
		)
	}

	if p.Mode != ModePlain {
		p.TLSConfig = &tls.Config{
			ServerName:         host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: d.insecure,
		}
	}
	return p, nil
}

// Dial opens a TCP connection for p, completing the TLS handshake for
// ModeImplicitTLS. STARTTLS upgrades are left to the protocol client.
func (d *Dialer) Dial(ctx context.Context, protocol string, p ConnParams) (net.Conn, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, mailerr.Transport(protocol, p.Addr(), "throttle", err)
		}
	}

	netDialer := &net.Dialer{Timeout: d.timeout}

	if p.Mode == ModeImplicitTLS {
		tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: p.TLSConfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", p.Addr())
		if err != nil {
			return nil, mailerr.Transport(protocol, p.Addr(), "tls dial", err)
		}
		return conn, nil
	}

	conn, err := netDialer.DialContext(ctx, "tcp", p.Addr())
	if err != nil {
		return nil, mailerr.Transport(protocol, p.Addr(), "dial", err)
	}
	return conn, nil
}

// closeOnCancel closes conn when ctx is done before stop is called, so
// blocking protocol reads return promptly on shutdown.
func closeOnCancel(ctx context.Context, conn interface{ Close() error }) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
