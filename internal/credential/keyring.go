package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"

	"github.com/nhle/priobox/internal/model"
)

const serviceName = "priobox"

// ErrNotFound is returned by Get when no password is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Vault stores account passwords keyed by account id in the system keyring.
type Vault struct {
	ring keyring.Keyring
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// NewMemoryVault returns a vault that keeps passwords in process memory.
func NewMemoryVault() *Vault {
	return NewVault(keyring.NewArrayKeyring(nil))
}

// Open returns a vault backed by the keyring selected in cfg.
func Open(cfg model.VaultConfig) (*Vault, error) {
	if cfg.Backend == "memory" {
		return NewMemoryVault(), nil
	}

	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if cfg.Backend == "file" {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          backends,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         filePassword,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewVault(ring), nil
}

// filePassword unlocks the encrypted file backend. PRIOBOX_VAULT_PASSWORD
// takes precedence over the built-in key.
func filePassword(prompt string) (string, error) {
	if pw := os.Getenv("PRIOBOX_VAULT_PASSWORD"); pw != "" {
		return pw, nil
	}
	return keyring.FixedStringPrompt("priobox-file-key")(prompt)
}

func passwordKey(accountID string) string {
	return "account_password_" + accountID
}

// Get retrieves the password for accountID. It returns ErrNotFound when
// the vault holds none.
func (v *Vault) Get(accountID string) (string, error) {
	item, err := v.ring.Get(passwordKey(accountID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %s: %w", accountID, err)
	}

	return string(item.Data), nil
}

// Set stores the password for accountID, replacing any previous value.
func (v *Vault) Set(accountID string, password string) error {
	err := v.ring.Set(keyring.Item{
		Key:         passwordKey(accountID),
		Data:        []byte(password),
		Label:       "priobox account " + accountID,
		Description: "mail account password",
	})
	if err != nil {
		return fmt.Errorf("setting credential for %s: %w", accountID, err)
	}

	return nil
}

// Clear removes the password for accountID. Clearing an absent entry is
// not an error.
func (v *Vault) Clear(accountID string) error {
	err := v.ring.Remove(passwordKey(accountID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential for %s: %w", accountID, err)
	}

	return nil
}
