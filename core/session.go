package orchestration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SessionStore keeps the session id across restarts so a conversation can be
// resumed.
type SessionStore interface {
	Load() (string, error)
	Save(sessionID string) error
}

// FileSessionStore keeps the id in a single file.
type FileSessionStore struct {
	Path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{Path: path}
}

// Load returns an empty id when nothing has been stored yet.
func (s *FileSessionStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read session id: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (s *FileSessionStore) Save(sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(sessionID+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write session id: %w", err)
	}
	return nil
}

type memorySessionStore struct {
	mu        sync.Mutex
	sessionID string
}

func (s *memorySessionStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, nil
}

func (s *memorySessionStore) Save(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	return nil
}

// resumeSession returns the stored id, creating and storing a new one when
// there is none.
func resumeSession(store SessionStore) (string, error) {
	sessionID, err := store.Load()
	if err != nil {
		return "", err
	}
	if sessionID != "" {
		return sessionID, nil
	}

	return renewSession(store)
}

func renewSession(store SessionStore) (string, error) {
	sessionID := uuid.NewString()
	if err := store.Save(sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}
