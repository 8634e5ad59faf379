package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/render"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(nil, "every now and then", 0)
	require.Error(t, err)

	j, err := New(nil, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "0 */30 * * * *", j.schedule)
}

func TestSweepProfileDirs(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, render.ProfileDirPrefix+"stale")
	fresh := filepath.Join(dir, render.ProfileDirPrefix+"fresh")
	unrelated := filepath.Join(dir, "keep-me")
	for _, p := range []string{stale, fresh, unrelated} {
		require.NoError(t, os.Mkdir(p, 0755))
	}

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	j := &Janitor{tempDir: dir}
	removed := j.sweepProfileDirs()

	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, unrelated)
}

func TestSweepTempDocuments(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "render-doc-123.html")
	fresh := filepath.Join(dir, "render-doc-456.html")
	unrelated := filepath.Join(dir, "other.html")
	for _, p := range []string{stale, fresh, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("<html></html>"), 0644))
	}

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	j := &Janitor{tempDir: dir}
	removed := j.sweepTempDocuments()

	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}
