// Package blob stores original uploads and normalized text on the local filesystem.
//
// Layout under the root directory:
//
//	original/YYYY-MM-DD/<hash prefix>_<sanitized filename>
//	txt/<hash[:2]>/<hash>.txt
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/corpus/internal/core/domain"
	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// DirName is the default blob directory name inside the data directory.
const DirName = "files"

// hashPrefixLen is the number of raw hash characters prefixed to stored originals.
const hashPrefixLen = 8

// maxNameLen bounds sanitized filenames.
const maxNameLen = 255

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespace  = regexp.MustCompile(`\s+`)
	underscores = regexp.MustCompile(`_+`)
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store is a filesystem driven.BlobStore.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a blob store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: blob directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{root: dir, now: time.Now}, nil
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// PutOriginal writes content under original/<date>/<hash prefix>_<name>.
func (s *Store) PutOriginal(_ context.Context, filename, rawHash string, content []byte) (string, error) {
	prefix := rawHash
	if len(prefix) > hashPrefixLen {
		prefix = prefix[:hashPrefixLen]
	}
	name := SanitizeFilename(filename)
	if prefix != "" {
		name = prefix + "_" + name
	}
	key := path.Join("original", s.now().UTC().Format("2006-01-02"), name)
	if err := s.write(key, content); err != nil {
		return "", err
	}
	return key, nil
}

// PutText writes text under txt/<hash[:2]>/<hash>.txt. An existing file is kept.
func (s *Store) PutText(_ context.Context, textHash, text string) (string, error) {
	if len(textHash) < 2 {
		return "", fmt.Errorf("%w: text hash %q too short", domain.ErrInvalidInput, textHash)
	}
	key := path.Join("txt", textHash[:2], textHash+".txt")
	if _, err := os.Stat(s.abs(key)); err == nil {
		return key, nil
	}
	if err := s.write(key, []byte(text)); err != nil {
		return "", err
	}
	return key, nil
}

// Get reads the blob under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.abs(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob under key. Missing blobs are ignored.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(s.abs(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

// write stores data atomically through a temp file and rename.
func (s *Store) write(key string, data []byte) error {
	target := s.abs(key)
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("storing blob %s: %w", key, err)
	}
	return nil
}

func (s *Store) abs(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func checkKey(key string) error {
	clean := path.Clean(key)
	if key == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: blob key %q", domain.ErrInvalidInput, key)
	}
	return nil
}

// SanitizeFilename makes a filename safe for storage: path separators,
// reserved and control characters and whitespace become underscores,
// repeated underscores collapse and the result is capped at 255 bytes.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = whitespace.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = truncateBytes(name[:len(name)-len(ext)], maxNameLen-len(ext)) + ext
	}
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
