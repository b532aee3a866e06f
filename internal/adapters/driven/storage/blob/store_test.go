package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC) }
	return store
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPutOriginal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := store.PutOriginal(ctx, "My Report (final).pdf", "abcdef0123456789", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "original/2024-03-09/abcdef01_My_Report_(final).pdf", key)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	_, err = os.Stat(filepath.Join(store.Root(), "original", "2024-03-09"))
	assert.NoError(t, err)
}

func TestPutOriginal_SameNameDifferentContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.PutOriginal(ctx, "notes.txt", "aaaaaaaa11", []byte("one"))
	require.NoError(t, err)
	b, err := store.PutOriginal(ctx, "notes.txt", "bbbbbbbb22", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	data, err := store.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestPutText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	hash := strings.Repeat("c", 64)

	key, err := store.PutText(ctx, hash, "first")
	require.NoError(t, err)
	assert.Equal(t, "txt/cc/"+hash+".txt", key)

	again, err := store.PutText(ctx, hash, "second")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "existing text is kept")

	_, err = store.PutText(ctx, "c", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "txt/zz/missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	key, err := store.PutOriginal(ctx, "a.txt", "1234567890", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting twice is fine")

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKeysCannotEscapeRoot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../secret", "/etc/passwd", "a/../../b"} {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, key)
		assert.ErrorIs(t, store.Delete(ctx, key), domain.ErrInvalidInput, key)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my file.docx", "my_file.docx"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{`a<b>c:d"e|f?g*h.txt`, "a_b_c_d_e_f_g_h.txt"},
		{"tabs\tand\nnewlines.txt", "tabs_and_newlines.txt"},
		{"__lead   and trail__", "lead_and_trail"},
		{"Питание и здоровье.pdf", "Питание_и_здоровье.pdf"},
		{"", "file"},
		{"///", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := strings.Repeat("ж", 200) + ".pdf"
	got := SanitizeFilename(long)

	assert.LessOrEqual(t, len(got), maxNameLen)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
	assert.True(t, utf8.ValidString(got))
}
