package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/priobox/internal/model"
)

// testTLSConfig returns a server config carrying httptest's self-signed
// certificate for 127.0.0.1.
func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	ts := httptest.NewUnstartedServer(http.NotFoundHandler())
	ts.StartTLS()
	defer ts.Close()

	require.NotEmpty(t, ts.TLS.Certificates)
	return &tls.Config{Certificates: ts.TLS.Certificates}
}

// listenLoopback opens a loopback listener. SSL/TLS servers get a TLS
// listener so the handshake happens on accept.
func listenLoopback(t *testing.T, security model.Security) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	if security == model.SecuritySSLTLS {
		ln = tls.NewListener(ln, testTLSConfig(t))
	}
	return ln
}
