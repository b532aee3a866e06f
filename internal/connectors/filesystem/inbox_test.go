package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case change, ok := <-changes:
		require.True(t, ok, "channel closed")
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file change event")
		return Change{}
	}
}

func TestInbox_Scan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("%PDF"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("h"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.docx.part"), []byte("p"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	files, err := New(dir).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf")}, files)
}

func TestInbox_ScanMissingDir(t *testing.T) {
	_, err := New("/non/existent/path").Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")
}

func TestInbox_Watch(t *testing.T) {
	t.Run("reports created files", func(t *testing.T) {
		dir := t.TempDir()
		inbox := New(dir, WithDebounce(0))
		defer inbox.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := inbox.Watch(ctx)
		require.NoError(t, err)

		testFile := filepath.Join(dir, "new-file.txt")
		require.NoError(t, os.WriteFile(testFile, []byte("content"), 0644))

		change := waitChange(t, changes)
		assert.Equal(t, ChangeCreated, change.Type)
		assert.Equal(t, testFile, change.Path)
	})

	t.Run("reports modified files", func(t *testing.T) {
		dir := t.TempDir()
		testFile := filepath.Join(dir, "test.txt")
		require.NoError(t, os.WriteFile(testFile, []byte("initial"), 0644))

		inbox := New(dir, WithDebounce(0))
		defer inbox.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := inbox.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(testFile, []byte("modified"), 0644))

		change := waitChange(t, changes)
		assert.Equal(t, ChangeUpdated, change.Type)
		assert.Equal(t, testFile, change.Path)
	})

	t.Run("debounce coalesces events per file", func(t *testing.T) {
		dir := t.TempDir()
		inbox := New(dir, WithDebounce(100*time.Millisecond))
		defer inbox.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := inbox.Watch(ctx)
		require.NoError(t, err)

		testFile := filepath.Join(dir, "growing.txt")
		f, err := os.Create(testFile)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err = f.WriteString("chunk ")
			require.NoError(t, err)
		}
		require.NoError(t, f.Close())

		change := waitChange(t, changes)
		assert.Equal(t, ChangeCreated, change.Type)
		assert.Equal(t, testFile, change.Path)

		select {
		case extra := <-changes:
			t.Fatalf("unexpected second change: %+v", extra)
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		changes, err := New("/non/existent/path").Watch(context.Background())

		assert.Error(t, err)
		assert.Nil(t, changes)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("returns error for a file root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

		_, err := New(file).Watch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		inbox := New(t.TempDir())
		defer inbox.Close()

		ctx, cancel := context.WithCancel(context.Background())
		changes, err := inbox.Watch(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("closes channel when inbox is closed", func(t *testing.T) {
		inbox := New(t.TempDir())
		changes, err := inbox.Watch(context.Background())
		require.NoError(t, err)

		require.NoError(t, inbox.Close())

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after Close")
		}
	})

	t.Run("returns error when inbox is closed", func(t *testing.T) {
		inbox := New(t.TempDir())
		require.NoError(t, inbox.Close())

		changes, err := inbox.Watch(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, changes)
	})
}

func TestInbox_Close(t *testing.T) {
	inbox := New("/tmp/test")

	assert.NoError(t, inbox.Close())
	assert.NoError(t, inbox.Close())
}

func TestInbox_handleFsEvent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(file, []byte("content"), 0644))
	hidden := filepath.Join(dir, ".hidden.txt")
	require.NoError(t, os.WriteFile(hidden, []byte("hidden"), 0644))
	subdir := filepath.Join(dir, "testdir")
	require.NoError(t, os.Mkdir(subdir, 0755))

	tests := []struct {
		name  string
		path  string
		op    fsnotify.Op
		want  ChangeType
		event bool
	}{
		{name: "create file", path: file, op: fsnotify.Create, want: ChangeCreated, event: true},
		{name: "write file", path: file, op: fsnotify.Write, want: ChangeUpdated, event: true},
		{name: "remove file", path: filepath.Join(dir, "gone.txt"), op: fsnotify.Remove},
		{name: "rename file", path: file, op: fsnotify.Rename},
		{name: "chmod file", path: file, op: fsnotify.Chmod},
		{name: "create directory", path: subdir, op: fsnotify.Create},
		{name: "hidden file", path: hidden, op: fsnotify.Create},
		{name: "partial download", path: filepath.Join(dir, "big.pdf.crdownload"), op: fsnotify.Write},
	}

	inbox := New(dir)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := inbox.handleFsEvent(fsnotify.Event{Name: tt.path, Op: tt.op})
			if !tt.event {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.want, change.Type)
			assert.Equal(t, tt.path, change.Path)
		})
	}
}
