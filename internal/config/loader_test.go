package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.SourceTTL)
	assert.Equal(t, 15*time.Minute, cfg.CommitClaimTTL)
	assert.Equal(t, 0.85, cfg.Import.Matching.HighThreshold)
	assert.Equal(t, 0.75, cfg.Import.Matching.LowThreshold)
	assert.Equal(t, 744.0, cfg.Import.MaxHours)
	assert.Equal(t, 50, cfg.Import.PreviewLimit)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  addr: ":9090"
database:
  host: db.internal
  port: 6543
storage:
  driver: memory
matching:
  high_threshold: 0.9
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("SMARTIMPORT_DATABASE_HOST", "override.internal")
	t.Setenv("SMARTIMPORT_IMPORT_PREVIEW_LIMIT", "25")
	t.Setenv("SMARTIMPORT_IMPORT_COMMIT_CLAIM_TTL", "90s")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "override.internal", cfg.Database.Host, "environment wins over the file")
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 0.9, cfg.Import.Matching.HighThreshold)
	assert.Equal(t, 25, cfg.Import.PreviewLimit)
	assert.Equal(t, 90*time.Second, cfg.CommitClaimTTL)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	bad := cfg
	bad.StorageDriver = "sqlite"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Import.Matching.LowThreshold = 0.95
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Log.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.CommitClaimTTL = 0
	assert.Error(t, bad.Validate())
}
