package fileutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Simple Title", "Simple Title"},
		{"invalid characters", `A<B>C:D"E/F\G|H?I*J`, "ABCDEFGHIJ"},
		{"collapses whitespace", "Too   many    spaces", "Too many spaces"},
		{"trailing dots", "Trailing dots...", "Trailing dots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForFilename(tt.input))
		})
	}
}

func TestSuggestedFilename(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		authors  []string
		title    string
		expected string
	}{
		{
			name:     "all parts",
			date:     "1965-08-01",
			authors:  []string{"Frank Herbert"},
			title:    "Dune",
			expected: "1965 - Frank Herbert - Dune.epub",
		},
		{
			name:     "multiple authors",
			date:     "2004",
			authors:  []string{"A. Author", "B. Writer"},
			title:    "Shared Work",
			expected: "2004 - A. Author, B. Writer - Shared Work.epub",
		},
		{
			name:     "no year",
			date:     "",
			authors:  []string{"Someone"},
			title:    "Untdated",
			expected: "Someone - Untdated.epub",
		},
		{
			name:     "title only",
			date:     "",
			authors:  nil,
			title:    "Alone",
			expected: "Alone.epub",
		},
		{
			name:     "nothing",
			date:     "",
			authors:  nil,
			title:    "",
			expected: "Unknown.epub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SuggestedFilename(tt.date, tt.authors, tt.title))
		})
	}
}

func TestUniqueFilepath(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "book.epub")
	assert.Equal(t, path, UniqueFilepath(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "book (1).epub"), UniqueFilepath(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "book (1).epub"), []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "book (2).epub"), UniqueFilepath(path))
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")

	src := filepath.Join(dir, "book.epub")
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0o644))

	backupPath, err := BackupFile(src, backupDir)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(backupPath, "-book.epub"))
	b, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), b)

	// A second backup never overwrites the first.
	second, err := BackupFile(src, backupDir)
	require.NoError(t, err)
	assert.NotEqual(t, backupPath, second)
}

func TestFindEPUBs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.epub"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.epub"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	paths, err := FindEPUBs(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.epub"), paths[0])
	assert.Equal(t, filepath.Join(dir, "nested", "b.epub"), paths[1])
}
