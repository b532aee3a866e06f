package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/corpus/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads enrichment prompts from user-editable files on disk,
// one <name>.txt per prompt, with fallback to the defaults it was built with.
//
// Files are created lazily on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	defaults  map[string]string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a prompt store seeded with defaults.
// If promptDir is empty, defaults to ~/.corpus/prompts/.
func NewPromptStore(promptDir string, defaults map[string]string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, DirName, "prompts")
	}

	copied := make(map[string]string, len(defaults))
	for k, v := range defaults {
		copied[k] = v
	}

	return &PromptStore{
		promptDir: promptDir,
		defaults:  copied,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt for name. A missing or blank file falls back to
// the built-in default.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil || prompt == "" {
		if def, ok := s.defaults[name]; ok {
			return def, nil
		}
		if err == nil {
			err = fmt.Errorf("prompt file is empty")
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the cache, forcing fresh reads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Err returns the error from directory initialisation, if any. Load still
// serves defaults when initialisation failed.
func (s *PromptStore) Err() error {
	s.initOnce.Do(s.initialise)
	return s.initErr
}

func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range s.defaults {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	names := make([]string, 0, len(s.defaults))
	for name := range s.defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Enrichment prompts\n\n")
	b.WriteString("These files drive metadata enrichment during `corpus sync`.\n\n## Files\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- `%s.txt`\n", name)
	}
	b.WriteString(`
## Customisation

Edit a file to change what the model extracts. Keep the instruction to
answer with a single JSON object; fields that do not match the expected
types are dropped. Delete a file to restore its default on the next run.
The ` + "`enrichment.prompt`" + ` setting in config.toml overrides the domain
prompt for every document.
`)
	return os.WriteFile(path, []byte(b.String()), 0600)
}
