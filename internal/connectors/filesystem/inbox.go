// Package filesystem watches an inbox directory for files to upload.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/corpus/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("inbox closed")

// ChangeType is the kind of filesystem change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
)

// Change is a file in the inbox that appeared or was written to.
type Change struct {
	Path string
	Type ChangeType
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithDebounce sets the quiet period before changes are reported.
// Zero reports every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(i *Inbox) {
		i.debounce = d
	}
}

// Inbox watches the top level of a directory. Hidden files, directories
// and partial downloads are ignored.
type Inbox struct {
	root     string
	debounce time.Duration

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates an inbox for root.
func New(root string, opts ...Option) *Inbox {
	i := &Inbox{root: root, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Root returns the watched directory.
func (i *Inbox) Root() string {
	return i.root
}

// Scan lists the files already in the inbox, sorted by name.
func (i *Inbox) Scan() ([]string, error) {
	entries, err := os.ReadDir(i.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || ignored(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(i.root, e.Name()))
	}
	return files, nil
}

// Watch reports changes until ctx is cancelled or the inbox is closed,
// then closes the channel. Changes to one file within the debounce period
// are reported once; a file created and then written stays created.
func (i *Inbox) Watch(ctx context.Context) (<-chan Change, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(i.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", i.root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(i.root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", i.root, err)
	}
	i.watcher = watcher

	changes := make(chan Change)
	go i.loop(ctx, watcher, changes)
	return changes, nil
}

func (i *Inbox) loop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	defer watcher.Close()

	pending := make(map[string]ChangeType)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var fire <-chan time.Time

	flush := func() bool {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			select {
			case changes <- Change{Path: p, Type: pending[p]}:
			case <-ctx.Done():
				return false
			}
		}
		clear(pending)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			change := i.handleFsEvent(event)
			if change == nil {
				continue
			}
			if prev, seen := pending[change.Path]; !seen || prev != ChangeCreated {
				pending[change.Path] = change.Type
			}
			if i.debounce <= 0 {
				if !flush() {
					return
				}
				continue
			}
			timer.Reset(i.debounce)
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)
		case <-fire:
			fire = nil
			if !flush() {
				return
			}
		}
	}
}

// handleFsEvent converts a watcher event into a change, or nil when the
// event is not relevant.
func (i *Inbox) handleFsEvent(event fsnotify.Event) *Change {
	if ignored(filepath.Base(event.Name)) {
		return nil
	}

	var typ ChangeType
	switch {
	case event.Has(fsnotify.Create):
		typ = ChangeCreated
	case event.Has(fsnotify.Write):
		typ = ChangeUpdated
	default:
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	return &Change{Path: event.Name, Type: typ}
}

// Close stops watching. It is safe to call more than once.
func (i *Inbox) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	if i.watcher != nil {
		return i.watcher.Close()
	}
	return nil
}

// partialSuffixes mark files that are still being written by another program.
var partialSuffixes = []string{".part", ".partial", ".crdownload", ".download", ".tmp", "~"}

func ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
