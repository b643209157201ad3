package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const credsFile = "creds.json"

// CredentialStore keeps the bridge's session credentials in a file under
// the auth directory.
type CredentialStore struct {
	dir string
}

// NewCredentialStore returns a store rooted at dir.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{dir: dir}
}

// Path returns the credentials file.
func (c *CredentialStore) Path() string {
	return filepath.Join(c.dir, credsFile)
}

// Load returns the stored credentials, or nil when none are stored.
func (c *CredentialStore) Load() ([]byte, error) {
	data, err := os.ReadFile(c.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("credentials file %s is not valid JSON", c.Path())
	}
	return data, nil
}

// Save replaces the stored credentials.
func (c *CredentialStore) Save(creds []byte) error {
	if !json.Valid(creds) {
		return errors.New("credentials are not valid JSON")
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	tmp := c.Path() + ".tmp"
	if err := os.WriteFile(tmp, creds, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, c.Path()); err != nil {
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credentials. Missing credentials are not an
// error.
func (c *CredentialStore) Clear() error {
	err := os.Remove(c.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
