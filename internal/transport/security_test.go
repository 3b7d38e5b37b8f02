package transport

import (
	"context"
	"crypto/tls"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/mailerr"
	"github.com/nhle/priobox/internal/model"
)

func TestDialerParams(t *testing.T) {
	d := NewDialer(Options{})

	tests := []struct {
		name     string
		endpoint model.Endpoint
		mode     Mode
		tls      bool
	}{
		{
			name:     "implicit tls",
			endpoint: model.Endpoint{Server: "imap.example.com", Port: 993, Security: model.SecuritySSLTLS},
			mode:     ModeImplicitTLS,
			tls:      true,
		},
		{
			name:     "starttls",
			endpoint: model.Endpoint{Server: "imap.example.com", Port: 143, Security: model.SecurityStartTLS},
			mode:     ModeStartTLS,
			tls:      true,
		},
		{
			name:     "plain",
			endpoint: model.Endpoint{Server: "localhost", Port: 1143, Security: model.SecurityNone},
			mode:     ModePlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := d.Params(tt.endpoint)
			require.NoError(t, err)

			assert.Equal(t, tt.mode, p.Mode)
			assert.Equal(t, tt.endpoint.Port, p.Port)
			if tt.tls {
				require.NotNil(t, p.TLSConfig)
				assert.Equal(t, tt.endpoint.Server, p.TLSConfig.ServerName)
				assert.Equal(t, uint16(tls.VersionTLS12), p.TLSConfig.MinVersion)
			} else {
				assert.Nil(t, p.TLSConfig)
			}
		})
	}
}

func TestDialerParamsDifferBySecurity(t *testing.T) {
	d := NewDialer(Options{})

	ssl, err := d.Params(model.Endpoint{Server: "mail.example.com", Port: 993, Security: model.SecuritySSLTLS})
	require.NoError(t, err)
	starttls, err := d.Params(model.Endpoint{Server: "mail.example.com", Port: 143, Security: model.SecurityStartTLS})
	require.NoError(t, err)

	assert.NotEqual(t, ssl.Mode, starttls.Mode)
	assert.NotEqual(t, ssl.Addr(), starttls.Addr())
	assert.Equal(t, "mail.example.com:993", ssl.Addr())
}

func TestDialerParamsRejectsInvalidSettings(t *testing.T) {
	d := NewDialer(Options{})

	tests := []struct {
		name     string
		endpoint model.Endpoint
	}{
		{"empty host", model.Endpoint{Server: "  ", Port: 993, Security: model.SecuritySSLTLS}},
		{"zero port", model.Endpoint{Server: "h", Port: 0, Security: model.SecuritySSLTLS}},
		{"port too large", model.Endpoint{Server: "h", Port: 70000, Security: model.SecuritySSLTLS}},
		{"unknown security", model.Endpoint{Server: "h", Port: 25, Security: "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Params(tt.endpoint)
			require.Error(t, err)
			assert.True(t, mailerr.IsConfig(err))
			assert.False(t, mailerr.IsTransient(err))
		})
	}
}

func TestDialRefusedIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	d := NewDialer(Options{})
	p, err := d.Params(model.Endpoint{Server: "127.0.0.1", Port: addr.Port, Security: model.SecurityNone})
	require.NoError(t, err)

	_, err = d.Dial(context.Background(), protoIMAP, p)
	require.Error(t, err)
	assert.True(t, mailerr.IsTransport(err))
	assert.True(t, mailerr.IsTransient(err))
}

func TestDialHonoursCanceledContext(t *testing.T) {
	d := NewDialer(Options{ConnectionsPerSec: 1})
	p, err := d.Params(model.Endpoint{Server: "127.0.0.1", Port: 9, Security: model.SecurityNone})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Dial(ctx, protoSMTP, p)
	require.Error(t, err)
	assert.True(t, mailerr.IsTransport(err))
}
