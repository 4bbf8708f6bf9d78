package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/erp/salesdocs/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("-- test"), 0o644))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add void reason", "add_void_reason"},
		{"Add-Void-Reason", "add_void_reason"},
		{"ADD_VOID_REASON", "add_void_reason"},
		{"add__void__reason", "add_void_reason"},
		{"Index 2026", "index_2026"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000001_create_projects.up.sql", "000001_create_projects.down.sql",
		"000004_create_document_sequences.up.sql", "000004_create_document_sequences.down.sql",
	)

	mf, err := CreateMigration(dir, "Add void reason", "Track why a version was voided")
	require.NoError(t, err)

	assert.Equal(t, "000005", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000005_add_void_reason.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000005_add_void_reason.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_void_reason")
	assert.Contains(t, string(up), "Track why a version was voided")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(down), "-- Rollback of add_void_reason"))

	next, err := CreateMigration(dir, "second", "")
	require.NoError(t, err)
	assert.Equal(t, "000006", next.Version)
}

func TestCreateMigration_FirstInEmptyDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	// a stray down file without its up file occupies the next name
	writeFiles(t, dir, "000001_init.down.sql")

	_, err := CreateMigration(dir, "init", "")
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "000001_init.up.sql"))
	assert.True(t, os.IsNotExist(err), "up file is removed when the pair cannot be completed")
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000002_add_drafts.up.sql", "000002_add_drafts.down.sql",
		"000001_init.up.sql", "000001_init.down.sql",
		"README.md", ".gitkeep",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_drafts"}, names)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	names, err := ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestVerifyPairs(t *testing.T) {
	ok := fstest.MapFS{
		"000001_init.up.sql":   {Data: []byte("")},
		"000001_init.down.sql": {Data: []byte("")},
	}
	assert.NoError(t, VerifyPairs(ok))

	missing := fstest.MapFS{"000001_init.up.sql": {Data: []byte("")}}
	err := VerifyPairs(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000001_init")
}

func TestEmbeddedMigrations(t *testing.T) {
	require.NoError(t, VerifyPairs(migrations.FS))

	names, err := ListMigrationsFS(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_projects",
		"000002_create_stored_documents",
		"000003_create_document_drafts",
		"000004_create_document_sequences",
		"000005_create_event_outbox",
	}, names)

	schema, err := migrations.FS.ReadFile("000002_create_stored_documents.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "WHERE is_current")
}
