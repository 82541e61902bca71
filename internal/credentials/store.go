// Package credentials persists the backend session between runs.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/interfaces"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/storage"
)

// fileContents is the on-disk layout: access_token, refresh_token, user.
type fileContents struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         *models.User `json:"user,omitempty"`
}

// FileStore keeps credentials in a 0600 JSON file.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	data   fileContents
	logger *common.Logger
}

var _ interfaces.CredentialProvider = (*FileStore)(nil)

// NewFileStore loads path if it exists. A missing file is an empty session.
func NewFileStore(logger *common.Logger, path string) (*FileStore, error) {
	fs := &FileStore{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read credentials %s: %w", path, err)
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		// A corrupt file reads as logged out.
		logger.Warn().Err(err).Str("path", path).Msg("Ignoring unreadable credentials file")
		fs.data = fileContents{}
	}
	return fs, nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

// Tokens returns the stored access and refresh tokens.
func (fs *FileStore) Tokens() interfaces.Tokens {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return interfaces.Tokens{Access: fs.data.AccessToken, Refresh: fs.data.RefreshToken}
}

// SetTokens replaces both tokens and writes the file.
func (fs *FileStore) SetTokens(access, refresh string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data.AccessToken = access
	fs.data.RefreshToken = refresh
	return fs.persistLocked()
}

// User returns a copy of the stored profile, or nil.
func (fs *FileStore) User() *models.User {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.data.User == nil {
		return nil
	}
	u := *fs.data.User
	return &u
}

// SetUser stores a copy of user and writes the file. nil removes it.
func (fs *FileStore) SetUser(user *models.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if user == nil {
		fs.data.User = nil
	} else {
		u := *user
		fs.data.User = &u
	}
	return fs.persistLocked()
}

// Clear removes the file entirely.
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data = fileContents{}
	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials %s: %w", fs.path, err)
	}
	fs.logger.Debug().Str("path", fs.path).Msg("Credentials cleared")
	return nil
}

func (fs *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	data = append(data, '\n')
	if err := storage.WriteFileAtomic(fs.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// MemoryStore is an in-process CredentialProvider.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
	user    *models.User
}

var _ interfaces.CredentialProvider = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with the given tokens.
func NewMemoryStore(access, refresh string) *MemoryStore {
	return &MemoryStore{access: access, refresh: refresh}
}

// Tokens returns the held tokens.
func (m *MemoryStore) Tokens() interfaces.Tokens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return interfaces.Tokens{Access: m.access, Refresh: m.refresh}
}

// SetTokens replaces both tokens.
func (m *MemoryStore) SetTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	return nil
}

// User returns a copy of the held profile, or nil.
func (m *MemoryStore) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// SetUser stores a copy of user.
func (m *MemoryStore) SetUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user == nil {
		m.user = nil
		return nil
	}
	u := *user
	m.user = &u
	return nil
}

// Clear drops tokens and user.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh, m.user = "", "", nil
	return nil
}
