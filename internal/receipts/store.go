// Package receipts manages the filesystem directory of uploaded receipt
// files: validated saves, strict path resolution for serving, and
// best-effort removal.
package receipts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidName is returned when a requested filename does not resolve
// strictly inside the store directory.
var ErrInvalidName = errors.New("invalid receipt filename")

// allowedExtensions is the set of receipt file types accepted for upload,
// matched case-insensitively.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".pdf":  {},
}

// SaveResult reports the outcome of a save attempt. A rejected upload is not
// an error: the caller decides whether to surface the reason.
type SaveResult struct {
	Filename string
	Rejected bool
	Reason   string
}

type Store struct {
	dir string

	// now is overridable in tests; filenames are prefixed with its Unix value.
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create receipt directory: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the store's directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save validates and persists an uploaded file. The stored name is the
// sanitized original name prefixed with the current Unix timestamp, so
// repeated uploads of the same file never collide. Disallowed extensions
// yield a rejected result, not an error.
func (s *Store) Save(originalName string, r io.Reader) (SaveResult, error) {
	name := strings.TrimSpace(originalName)
	if name == "" {
		return SaveResult{Rejected: true, Reason: "empty filename"}, nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return SaveResult{Rejected: true, Reason: fmt.Sprintf("file type %q not allowed", ext)}, nil
	}

	safe := sanitizeFilename(name)
	if safe == "" {
		return SaveResult{Rejected: true, Reason: "filename reduces to nothing after sanitizing"}, nil
	}

	filename := fmt.Sprintf("%d_%s", s.now().Unix(), safe)
	dst, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return SaveResult{}, fmt.Errorf("create receipt file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return SaveResult{}, fmt.Errorf("write receipt file: %w", err)
	}

	return SaveResult{Filename: filename}, nil
}

// Resolve maps a stored filename to its absolute path, rejecting anything
// that would escape the store directory. The file itself may not exist;
// callers stat or open it.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}

	path := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel != name {
		return "", ErrInvalidName
	}
	return path, nil
}

// Remove deletes a stored receipt file. Callers treat failures as
// best-effort: log the returned error and carry on.
func (s *Store) Remove(name string) error {
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove receipt %s: %w", name, err)
	}
	return nil
}

// sanitizeFilename reduces a user-supplied filename to a safe subset:
// ASCII letters, digits, dot, dash and underscore. Path separators and
// anything else become underscores; leading dots are stripped.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
