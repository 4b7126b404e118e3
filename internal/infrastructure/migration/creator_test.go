package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/hospital/billing/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add refunds table", "add_refunds_table"},
		{"Add-Refunds-Table", "add_refunds_table"},
		{"ADD__REFUNDS", "add_refunds"},
		{"index 2 due dates", "index_2_due_dates"},
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

	first, err := CreateMigration(dir, "add refunds table", "Refund bookkeeping")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "000001_add_refunds_table.up.sql", filepath.Base(first.UpPath))
	assert.Equal(t, "000001_add_refunds_table.down.sql", filepath.Base(first.DownPath))

	content, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- add_refunds_table")
	assert.Contains(t, string(content), "-- Refund bookkeeping")

	second, err := CreateMigration(dir, "index claims", "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	_, err = CreateMigration(dir, "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "initial", "")
	require.NoError(t, err)
	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_second.up.sql":    {Data: []byte("SELECT 1;")},
		"000002_second.down.sql":  {Data: []byte("SELECT 1;")},
		"000001_first.up.sql":     {Data: []byte("SELECT 1;")},
		"000001_first.down.sql":   {Data: []byte("SELECT 1;")},
		"README.md":               {Data: []byte("notes")},
		"draft.up.sql":            {Data: []byte("SELECT 1;")},
		"archive/000009_x.up.sql": {Data: []byte("SELECT 1;")},
	}

	list, err := ListMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000001_first", list[0].String())
	assert.Equal(t, "000002_second", list[1].String())
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	list, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i, m := range list {
		assert.Equal(t, i+1, m.Version, "versions must be contiguous")
		_, err := migrations.FS.Open(m.String() + ".down.sql")
		assert.NoError(t, err, "missing down migration for %s", m)
	}
}
