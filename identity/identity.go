// Package identity provides types.IdentityProvider implementations.
//
// An identity names one participating process in the election. It only needs
// to be unique among the processes sharing a lock; the elector never parses it.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/primary/types"
)

// ErrEmptyIdentity is returned when a provider would yield an empty identity.
var ErrEmptyIdentity = errors.New("identity is empty")

// Static returns a provider that always yields id.
func Static(id string) types.IdentityProvider {
	return staticProvider(id)
}

type staticProvider string

func (s staticProvider) ID() (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: %w", types.ErrIdentityUnavailable, ErrEmptyIdentity)
	}

	return string(s), nil
}

// Random returns a provider that generates a UUID v4 on first use and keeps
// returning it for the life of the provider.
func Random() types.IdentityProvider {
	return &randomProvider{}
}

type randomProvider struct {
	once sync.Once
	id   string
}

func (r *randomProvider) ID() (string, error) {
	r.once.Do(func() {
		r.id = uuid.NewString()
	})

	return r.id, nil
}

// File persists a generated identity in a session-scoped file so a process
// restarted within the same session reuses it. A new session should use a new
// path, for example one under a per-session temporary directory.
type File struct {
	path string

	mu sync.Mutex
	id string
}

// Compile-time assertion that File implements IdentityProvider.
var _ types.IdentityProvider = (*File)(nil)

// NewFile creates a file-backed provider for path.
//
// Parameters:
//   - path: File holding the identity; created with mode 0600 on first use
//
// Returns:
//   - *File: Provider reading or creating path lazily
//
// Example:
//
//	ids := identity.NewFile(filepath.Join(os.TempDir(), sessionID, "primary.id"))
//	elector, err := primary.New(cfg, store, bus, primary.WithIdentityProvider(ids))
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// ID returns the persisted identity, generating and writing one if the file
// does not exist or is empty.
func (f *File) ID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.id != "" {
		return f.id, nil
	}

	data, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(data)); id != "" {
			f.id = id
			return id, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("%w: read %s: %w", types.ErrIdentityUnavailable, f.path, err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return "", fmt.Errorf("%w: create dir for %s: %w", types.ErrIdentityUnavailable, f.path, err)
	}
	if err := os.WriteFile(f.path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", types.ErrIdentityUnavailable, f.path, err)
	}
	f.id = id

	return id, nil
}
