package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepOrphanMedia(t *testing.T) {
	dir := t.TempDir()
	recorded := filepath.Join(dir, "2024", "05", "01", "kept.png")
	orphan := filepath.Join(dir, "2024", "05", "01", "orphan.png")
	fresh := filepath.Join(dir, "2024", "05", "02", "fresh.png")
	broken := filepath.Join(dir, "2024", "05", "02", "broken.png")
	writeAged(t, recorded, 2*time.Hour)
	writeAged(t, orphan, 2*time.Hour)
	writeAged(t, fresh, time.Minute)
	writeAged(t, broken, 2*time.Hour)

	removed, err := SweepOrphanMedia(dir, time.Hour, func(path string) (bool, error) {
		switch path {
		case recorded:
			return true, nil
		case broken:
			return false, errors.New("db down")
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, orphan)
	assert.FileExists(t, recorded)
	assert.FileExists(t, fresh)
	assert.FileExists(t, broken)
}

func TestSweepOrphanMedia_MissingDir(t *testing.T) {
	removed, err := SweepOrphanMedia(filepath.Join(t.TempDir(), "none"), time.Hour, func(string) (bool, error) {
		return false, nil
	})
	assert.NoError(t, err)
	assert.Zero(t, removed)
}
