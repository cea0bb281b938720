package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	name, size, err := store.Save(context.Background(), "Survey Data 2024.CSV", strings.NewReader("a,b\n1,2\n"), 1024)
	require.NoError(t, err)
	assert.EqualValues(t, 8, size)
	assert.True(t, strings.HasSuffix(name, "-survey-data-2024.csv"), name)

	f, err := store.Open(name)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
}

func TestSaveNamesAreUnique(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	first, _, err := store.Save(context.Background(), "data.json", strings.NewReader("[]"), 0)
	require.NoError(t, err)
	second, _, err := store.Save(context.Background(), "data.json", strings.NewReader("[]"), 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSaveTooLargeRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, _, err = store.Save(context.Background(), "big.csv", strings.NewReader(strings.Repeat("x", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveExactlyAtLimit(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, size, err := store.Save(context.Background(), "ok.csv", strings.NewReader(strings.Repeat("x", 10)), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Remove("01HZZZZZZZZZZZZZZZZZZZZZZZ-missing.csv"))
}

func TestPathRejectsTraversal(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../etc/passwd", "a/b.csv"} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestStoredNameSanitizes(t *testing.T) {
	name := StoredName(`C:\temp\../Weird  Name!!.Js$on`)
	parts := strings.SplitN(name, "-", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 26)
	assert.Equal(t, "weird-name.json", parts[1])

	assert.True(t, strings.HasSuffix(StoredName("???"), "-upload"))
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = store.Save(ctx, "data.csv", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
