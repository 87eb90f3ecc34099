package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/YodHeVauHe/CallCenterX/internal/backend"
)

// Persistence stores the minimal session reference that survives a process
// restart. Implementations must treat "nothing stored" as (nil, nil).
type Persistence interface {
	Load(ctx context.Context) (*backend.Session, error)
	Save(ctx context.Context, sess *backend.Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory only. Used by the proxy
// (which is stateless per request) and by tests.
type MemoryStore struct {
	mu   sync.Mutex
	sess *backend.Session
}

// NewMemoryStore creates an in-memory persistence.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (*backend.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *MemoryStore) Save(ctx context.Context, sess *backend.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// FileStore persists the serialized session as a JSON file named by the
// application, the local-storage analogue for the console client. The file
// is written 0600 and removed on sign-out.
type FileStore struct {
	path string
}

// NewFileStore places the session file under the user config directory,
// keyed by appName.
func NewFileStore(appName string) (*FileStore, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("session: locate config dir: %w", err)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, "session.json")}, nil
}

// NewFileStoreAt uses an explicit file path. Used by tests and by the
// -session-file console flag.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*backend.Session, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}
	var sess backend.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

func (f *FileStore) Save(ctx context.Context, sess *backend.Session) error {
	if sess == nil {
		return f.Clear(ctx)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}
