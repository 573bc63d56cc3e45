package account

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/osa030/melodify/internal/domain/user"
)

// SessionFile persists the signed-in session between runs.
type SessionFile struct {
	path string
}

// NewSessionFile creates a session file at path. An empty path disables
// persistence.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Load reads the saved session. A missing file returns nil.
func (f *SessionFile) Load() (*user.Session, error) {
	if f == nil || f.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session file")
	}
	var s user.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse session file")
	}
	return &s, nil
}

// Save writes s, readable by the owner only.
func (f *SessionFile) Save(s *user.Session) error {
	if f == nil || f.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "failed to create session directory")
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write session file")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "failed to replace session file")
}

// Remove deletes the saved session.
func (f *SessionFile) Remove() error {
	if f == nil || f.path == "" {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}
