// Package mailerr classifies failures of mail operations so callers can
// tell configuration problems from transport failures.
package mailerr

import (
	"errors"
	"fmt"
)

// ErrCredentialsMissing is returned when the vault holds no password for
// an account.
var ErrCredentialsMissing = errors.New("credentials missing")

// ConfigError reports a problem with account settings or credentials.
// It is fatal to the operation and never retried automatically.
type ConfigError struct {
	Setting string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Setting == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Setting, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MissingCredentials builds the ConfigError raised when no password is
// stored for the account identified by address.
func MissingCredentials(address string) error {
	return &ConfigError{
		Setting: address,
		Message: ErrCredentialsMissing.Error(),
		Err:     ErrCredentialsMissing,
	}
}

// InvalidSetting builds a ConfigError for a rejected setting value.
func InvalidSetting(setting, reason string) error {
	return &ConfigError{Setting: setting, Message: reason}
}

// TransportError reports a network or protocol failure talking to a
// mail server.
type TransportError struct {
	Protocol string
	Addr     string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Protocol, e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError. A nil err yields nil.
func Transport(protocol, addr, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Protocol: protocol, Addr: addr, Op: op, Err: err}
}

// AuthError indicates that the server rejected the account credentials.
type AuthError struct {
	Protocol string
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed for %s: %v", e.Protocol, e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsConfig reports whether err (or any error in its chain) is a ConfigError.
func IsConfig(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// IsAuth reports whether err (or any error in its chain) is an AuthError.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransport reports whether err is a transport or authentication failure.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) || IsAuth(err)
}

// IsTransient reports whether retrying the operation later may succeed.
// Configuration problems are never transient.
func IsTransient(err error) bool {
	if err == nil || IsConfig(err) {
		return false
	}
	return true
}
