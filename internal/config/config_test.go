package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybooks/tally/internal/log"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Household")
	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "db.internal"
	cfg.Report.Depth = 5

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Household", got.Book.Name)
	assert.Equal(t, "postgres", got.Database.Driver)
	assert.Equal(t, "db.internal", got.Database.Host)
	assert.Equal(t, 5, got.Report.Depth)
	assert.Equal(t, "table", got.Report.Format)
	assert.Equal(t, log.LevelInfo, got.Log.Level)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Books")

	assert.Equal(t, "My Books", cfg.Book.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "tally.db", cfg.Database.Name)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Report.Depth)
	assert.Equal(t, "USD", cfg.Report.Currency)
	assert.Equal(t, filepath.Join("logs", "verify-log.csv"), cfg.Verify.AuditLog)
	assert.NoError(t, Validate(cfg))
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default("Test Books")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Books")
	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "audit_log: logs/verify-log.csv")
	assert.NotContains(t, contents, "password")
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, Default("Household")))

	t.Setenv("TALLY_REPORT_FORMAT", "markdown")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TALLY_DATABASE_PASSWORD=s3cret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TALLY_DATABASE_PASSWORD") })

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "markdown", got.Report.Format)
	assert.Equal(t, "s3cret", got.Database.Password)
	assert.Equal(t, "Household", got.Book.Name)
}

func TestValidation(t *testing.T) {
	cfg := Default("Household")
	cfg.Database.Driver = "oracle"
	assert.Error(t, Validate(cfg))

	cfg = Default("")
	assert.Error(t, Validate(cfg))

	path := filepath.Join(t.TempDir(), FileName)
	bad := Default("Household")
	bad.Report.Format = "latex"
	require.NoError(t, Save(path, bad))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cfg := Default("Household")
	cfg.Log.Output = "logs/tally.log"
	cfg.Resolve("/srv/books")

	assert.Equal(t, "/srv/books/tally.db", cfg.Database.Name)
	assert.Equal(t, "/srv/books/logs/tally.log", cfg.Log.Output)
	assert.Equal(t, "/srv/books/logs/verify-log.csv", cfg.Verify.AuditLog)
	assert.Empty(t, cfg.Verify.MetricsFile)

	cfg = Default("Household")
	cfg.Resolve("/srv/books")
	assert.Equal(t, "stderr", cfg.Log.Output)
}
