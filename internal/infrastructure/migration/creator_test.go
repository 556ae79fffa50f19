package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add payments table", "add_payments_table"},
		{"Add-Payments-Table", "add_payments_table"},
		{"ADD_PAYMENTS_TABLE", "add_payments_table"},
		{"add__payments__table", "add_payments_table"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"!!! ###", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("numbers the first migration 1", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "migrations")

		m, err := CreateMigration(dir, "Add refund reason", "Store why a payment was refunded")
		require.NoError(t, err)
		assert.Equal(t, uint(1), m.Version)
		assert.Equal(t, "000001_add_refund_reason", m.Base())

		up, err := os.ReadFile(m.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "-- 000001_add_refund_reason")
		assert.Contains(t, string(up), "-- Store why a payment was refunded")
		assert.Contains(t, string(up), "BEGIN;")

		down, err := os.ReadFile(m.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "rollback")
	})

	t.Run("continues after the highest existing version", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000001_init_payments.up.sql", "000001_init_payments.down.sql",
			"000007_add_index.up.sql", "000007_add_index.down.sql",
		)

		m, err := CreateMigration(dir, "add-late-fee-index", "")
		require.NoError(t, err)
		assert.Equal(t, uint(8), m.Version)
		assert.Equal(t, filepath.Join(dir, "000008_add_late_fee_index.up.sql"), m.UpPath)
	})

	t.Run("rejects a name with nothing usable", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "???", "")
		require.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("orders pairs by version and ignores other files", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000002_add_index.up.sql", "000002_add_index.down.sql",
			"000001_init_payments.up.sql", "000001_init_payments.down.sql",
			"000003_orphan.down.sql",
			"README.md", ".gitkeep",
		)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "000009_dir.up.sql"), 0o755))

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		require.Len(t, migrations, 2)
		assert.Equal(t, "init_payments", migrations[0].Name)
		assert.Equal(t, uint(2), migrations[1].Version)
		assert.NotEmpty(t, migrations[1].DownPath)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		migrations, err := ListMigrations("/nonexistent/path/to/migrations")
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})
}

func TestMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &migrateLogger{logger: zap.New(core)}

	l.Printf("Start buffering %d/u %s\n", 1, "init_payments")
	assert.False(t, l.Verbose())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Start buffering 1/u init_payments", logs.All()[0].Message)
}
