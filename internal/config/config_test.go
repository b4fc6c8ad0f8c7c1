package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "certverify.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentSubmissions)
	assert.Equal(t, "approved_institutes.xlsx", cfg.Registry.Path)
	assert.Equal(t, "Approved Institute Registry", cfg.Registry.Authority)
	assert.Equal(t, 24*time.Hour, cfg.Registry.CacheTTL)
	assert.Equal(t, "http://localhost:8765", cfg.Clip.BaseURL)
	assert.Equal(t, "clip-vit-base-patch32", cfg.Clip.Model)
	assert.InDelta(t, 5.0, cfg.Clip.RateLimit, 0.001)
	assert.Empty(t, cfg.Issuers.Trusted)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/certverify
registry:
  path: /data/aicte.xlsx
  sheet_name: Institutes
  skip_rows: 2
issuers:
  trusted:
    - udemy
    - edx
visual:
  reference_dir: /data/logos
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "/data/aicte.xlsx", cfg.Registry.Path)
	assert.Equal(t, "Institutes", cfg.Registry.SheetName)
	assert.Equal(t, 2, cfg.Registry.SkipRows)
	assert.Equal(t, []string{"udemy", "edx"}, cfg.Issuers.Trusted)
	assert.Equal(t, "/data/logos", cfg.Visual.ReferenceDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "http://localhost:8765", cfg.Clip.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("CERTVERIFY_STORE_DRIVER", "postgres")
	t.Setenv("CERTVERIFY_REGISTRY_PATH", "/env/registry.csv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "/env/registry.csv", cfg.Registry.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
