package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyACM0
  baud_rate: 57600
  settle_delay: 500ms
thresholds:
  peak_max: 110
protocol:
  enabled: true
  baseline_duration: 45s
services:
  metrics_server:
    enabled: true
    address: 127.0.0.1:9100
export:
  format: json
logging:
  level: debug
`)

	config, err := LoadConfig(path, file.NewFileService())

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", config.Serial.Port)
	assert.Equal(t, 57600, config.Serial.BaudRate)
	assert.Equal(t, 500*time.Millisecond, config.Serial.SettleDelay)
	assert.Equal(t, constants.DefaultReadTimeout, config.Serial.ReadTimeout)
	assert.Equal(t, constants.DefaultMaxLineLength, config.Serial.MaxLineLength)
	assert.Equal(t, constants.DefaultPortHints, config.Serial.PortHints)
	assert.Equal(t, constants.DefaultSampleCapacity, config.Samples.Capacity)

	assert.Equal(t, 110.0, config.Thresholds.PeakMax)
	assert.Equal(t, constants.DefaultDeltaHRMin, config.Thresholds.DeltaHRMin)
	assert.Equal(t, constants.DefaultDeltaHRMax, config.Thresholds.DeltaHRMax)
	assert.Equal(t, constants.DefaultRecoveryMargin, config.Thresholds.RecoveryMargin)

	assert.True(t, config.Protocol.Enabled)
	assert.Equal(t, 45*time.Second, config.Protocol.BaselineDuration)
	assert.True(t, config.Services.MetricsServer.Enabled)
	assert.Equal(t, "127.0.0.1:9100", config.Services.MetricsServer.Address)
	assert.False(t, config.Services.Publisher.Enabled)
	assert.True(t, config.Export.Enabled)
	assert.Equal(t, "json", config.Export.Format)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfig_ZeroSettleDelayDisablesSettle(t *testing.T) {
	path := writeConfig(t, `
serial:
  read_timeout: 0s
  settle_delay: 0s
`)

	config, err := LoadConfig(path, file.NewFileService())

	require.NoError(t, err)
	assert.Zero(t, config.Serial.SettleDelay)
	assert.Equal(t, constants.DefaultReadTimeout, config.Serial.ReadTimeout)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), file.NewFileService())

	assert.Error(t, err)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
serial:
  baud_rate: 12345
services:
  publisher:
    enabled: true
    qos: 3
export:
  format: xlsx
  upload:
    enabled: true
logging:
  level: loud
`)

	_, err := LoadConfig(path, file.NewFileService())

	require.Error(t, err)
	for _, want := range []string{
		"serial.baud_rate 12345",
		"services.publisher.broker is required",
		"services.publisher.qos 3",
		`export.format "xlsx"`,
		"export.upload.endpoint",
		"logging.level",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	config := DefaultConfig()

	assert.NoError(t, config.Validate())
	assert.Equal(t, constants.DefaultBaudRate, config.Serial.BaudRate)
	assert.Equal(t, constants.DefaultSettleDelay, config.Serial.SettleDelay)
	assert.Equal(t, "csv", config.Export.Format)
}

func TestConfig_ValidateRejectsNonFiniteThreshold(t *testing.T) {
	config := DefaultConfig()
	config.Thresholds.DeltaHRMax = math.Inf(1)

	assert.ErrorContains(t, config.Validate(), "thresholds.dhr_max")
}
