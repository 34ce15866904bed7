package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/adapters/factory"
	"github.com/renjie/prism-co2/pkg/config"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/services"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prism.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func lookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Tavastland", cfg.Prefix)
	assert.Equal(t, 12*time.Hour, cfg.Pipeline.MaxBridge)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.JoinTolerance)
	assert.Equal(t, factory.DefaultChecks(), cfg.Pipeline.Checks)
	assert.True(t, cfg.Output.TSV)
	assert.False(t, cfg.Output.Parquet)
	assert.Equal(t, services.DefaultCalibrationConfig(), cfg.Calibration())
	assert.Equal(t, services.DefaultDerivationConfig(), cfg.Derivation())
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
prefix: Finnmaid
log:
  level: debug
pipeline:
  standards: ["2", "3", "4"]
  max_bridge: 6h
  calibration:
    calibration_threshold: 5
output:
  parquet: true
storage:
  sqlite_path: /tmp/runs.db
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Finnmaid", cfg.Prefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"2", "3", "4"}, cfg.Pipeline.Standards)
	assert.Equal(t, 6*time.Hour, cfg.Pipeline.MaxBridge)
	assert.Equal(t, 5.0, cfg.Calibration().CalibrationThreshold)
	assert.Equal(t, 10.0, cfg.Calibration().StandardThreshold)
	assert.True(t, cfg.Output.Parquet)
	assert.True(t, cfg.Output.TSV)
	assert.Equal(t, "/tmp/runs.db", cfg.Storage.SQLitePath)
	// 未出现 checks 时保留默认检查链
	assert.Equal(t, factory.DefaultChecks(), cfg.Pipeline.Checks)
}

func TestLoad_ChecksReplaceDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  checks:
    - id: range
      type: RANGE
      channels: ["CO2 ppm"]
      parameters: {min: 80, max: 1200}
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Pipeline.Checks, 1)
	assert.Equal(t, domain.CheckTypeRange, cfg.Pipeline.Checks[0].Type)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = config.Load(writeConfig(t, "unknown_key: 1\n"))
	assert.ErrorContains(t, err, "parse config")

	_, err = config.Load(writeConfig(t, `
pipeline:
  max_bridge: 0s
  checks:
    - {id: broken, type: NOPE}
kafka:
  brokers: ["localhost:9092"]
  topic: ""
`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "max_bridge")
	assert.ErrorContains(t, err, "kafka.topic")
	assert.ErrorContains(t, err, "pipeline.checks")

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "Tavastland", cfg.Prefix)
}

func TestFromEnv(t *testing.T) {
	cfg := config.Default()
	err := cfg.FromEnv(lookup(map[string]string{
		"PRISM_CO2_PREFIX":                "Finnpartner",
		"PRISM_CO2_STANDARDS":             " 2, 3 ,,4",
		"PRISM_CO2_KAFKA_BROKERS":         "a:9092,b:9092",
		"PRISM_CO2_MAX_BRIDGE":            "3h",
		"PRISM_CO2_CALIBRATION_THRESHOLD": "7.5",
		"PRISM_CO2_HTTP_ADDR":             "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Finnpartner", cfg.Prefix)
	assert.Equal(t, []string{"2", "3", "4"}, cfg.Pipeline.Standards)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3*time.Hour, cfg.Pipeline.MaxBridge)
	assert.Equal(t, 7.5, cfg.Pipeline.Calibration.CalibrationThreshold)
	assert.Equal(t, ":8080", cfg.HTTP.Addr, "blank values are ignored")

	err = cfg.FromEnv(lookup(map[string]string{"PRISM_CO2_STANDARD_THRESHOLD": "ten"}))
	assert.ErrorContains(t, err, "PRISM_CO2_STANDARD_THRESHOLD")
}
