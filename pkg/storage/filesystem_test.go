package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("run-1.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "run-1.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(body))
}

func TestLocalStorageContainsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	// Traversal segments collapse inside the base dir rather than escaping it.
	rel, err := store.Save("../outside.csv", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "outside.csv", rel)
	require.FileExists(t, filepath.Join(dir, "outside.csv"))

	_, err = store.Open("../../etc/passwd")
	require.Error(t, err)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old.csv"}, deleted)

	_, err = store.Open("old.csv")
	require.Error(t, err)
	_, err = store.Open("fresh.csv")
	require.NoError(t, err)
}

func TestLocalStorageDeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("run-1.csv", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete("run-1.csv"))
	require.NoError(t, store.Delete("run-1.csv"))
}
