// Package authstore persists the signed-in session (bearer token plus the
// user it belongs to) between runs.
package authstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/storyreader/internal/logger"
)

const (
	sessionFilePerms = 0o600
	sessionDirPerms  = 0o700
)

// ErrNoSession is returned by Load when nobody is signed in.
var ErrNoSession = errors.New("authstore: no session")

// UserRef identifies the signed-in user.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Session is what a successful login leaves behind.
type Session struct {
	Token   string    `json:"token"`
	User    UserRef   `json:"user"`
	SavedAt time.Time `json:"savedAt"`
}

// Valid reports whether s carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// Store loads and saves the current session.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu sync.RWMutex
	s  *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return Session{}, ErrNoSession
	}
	return *m.s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if !s.Valid() {
		return errors.New("authstore: refusing to save session without token")
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	m.mu.Lock()
	m.s = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.s = nil
	m.mu.Unlock()
	return nil
}

// FileStore keeps the session in a JSON file readable only by its owner.
// Writes go through a temp file and rename so readers never see a partial file.
type FileStore struct {
	path string
	mu   sync.Mutex // serializes writers
	sf   singleflight.Group

	beforeDiscard func() // test hook, runs between the two reads of a corrupt file
}

// NewFileStore returns a FileStore at path. The file need not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("authstore: session file path is empty")
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

// Path returns the session file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the session file. Concurrent loads share one read.
// A file that cannot be parsed is removed and reported as ErrNoSession.
func (f *FileStore) Load(ctx context.Context) (Session, error) {
	v, err, _ := f.sf.Do("load", func() (any, error) {
		return f.read()
	})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

func (f *FileStore) read() (Session, error) {
	s, ok, err := f.readFile()
	if err != nil || ok {
		return s, err
	}
	if f.beforeDiscard != nil {
		f.beforeDiscard()
	}

	// A Save may have replaced the file since it was read.
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok, err = f.readFile()
	if err != nil || ok {
		return s, err
	}
	logger.WithComponent("authstore").Warn("discarding unreadable session file", "path", f.path)
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Session{}, fmt.Errorf("authstore: remove corrupt session: %w", err)
	}
	return Session{}, ErrNoSession
}

// readFile reports ok=false, with no error, when the file exists but does
// not hold a usable session.
func (f *FileStore) readFile() (s Session, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, false, ErrNoSession
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("authstore: read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil || !s.Valid() {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (f *FileStore) Save(ctx context.Context, s Session) error {
	if !s.Valid() {
		return errors.New("authstore: refusing to save session without token")
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("authstore: encode session: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, sessionDirPerms); err != nil {
		return fmt.Errorf("authstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("authstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(sessionFilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("authstore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("authstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("authstore: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("authstore: rename: %w", err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("authstore: clear: %w", err)
	}
	return nil
}
