package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "model", cfg.Model.Dir)
	assert.Equal(t, "./data/training.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	tr := cfg.Training
	assert.Equal(t, "data/suicide_detection.csv", tr.DataPath)
	assert.Equal(t, "text", tr.TextColumn)
	assert.Equal(t, "class", tr.ClassColumn)
	assert.Equal(t, "suicide", tr.PositiveClass)
	assert.Equal(t, 0.2, tr.TestSize)
	assert.Equal(t, uint64(42), tr.Seed)
	assert.Equal(t, 5000, tr.MaxFeatures)
	assert.Equal(t, 1, tr.NGramMin)
	assert.Equal(t, 2, tr.NGramMax)
	assert.Equal(t, 1.0, tr.C)
	assert.Equal(t, 1000, tr.MaxIterations)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("RISKSCAN_HOME", "/srv/riskscan")

	path := writeConfig(t, `
server:
  port: "8080"
model:
  dir: ${RISKSCAN_HOME}/model
training:
  positive_class: risk
  max_features: 100
logging:
  format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "/srv/riskscan/model", cfg.Model.Dir)
	assert.Equal(t, "risk", cfg.Training.PositiveClass)
	assert.Equal(t, 100, cfg.Training.MaxFeatures)
	assert.Equal(t, 2, cfg.Training.NGramMax)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "servr:\n  port: 1\n"))
	assert.Error(t, err)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
}

func TestPath(t *testing.T) {
	t.Setenv("RISKSCAN_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv("RISKSCAN_CONFIG", "/etc/riskscan.yml")
	assert.Equal(t, "/etc/riskscan.yml", Path())
}
