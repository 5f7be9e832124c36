package utils

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/evaluator"
	"github.com/benmeehan/ortho-monitor/internal/session"
	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/rs/zerolog"
)

// Config represents the structure of the configuration file.
type Config struct {
	Serial struct {
		Port          string        `yaml:"port"`            // Device path; empty selects one automatically
		BaudRate      int           `yaml:"baud_rate"`       // Serial speed
		ReadTimeout   time.Duration `yaml:"read_timeout"`    // Upper bound of a blocking read
		SettleDelay   time.Duration `yaml:"settle_delay"`    // Wait after open for the board to reset
		MaxLineLength int           `yaml:"max_line_length"` // Longest unterminated line kept, in bytes
		PortHints     []string      `yaml:"port_hints"`      // Substrings preferred by port auto-selection
	} `yaml:"serial"`

	Samples struct {
		Capacity int `yaml:"capacity"` // Readings kept for plotting
	} `yaml:"samples"`

	Thresholds evaluator.ThresholdConfig `yaml:"thresholds"`

	Protocol struct {
		Enabled          bool          `yaml:"enabled"`           // Run the guided 30-30-120 test after connecting
		BaselineDuration time.Duration `yaml:"baseline_duration"` // Lying phase before the stand command
	} `yaml:"protocol"`

	Services struct {
		Publisher struct {
			Enabled       bool   `yaml:"enabled"`        // Forward session records over MQTT
			Broker        string `yaml:"broker"`         // MQTT broker address
			ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
			CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate; empty disables TLS
			Username      string `yaml:"username"`
			Password      string `yaml:"password"`
			Topic         string `yaml:"topic"`      // Topic session records are published to
			QOS           int    `yaml:"qos"`        // MQTT QoS level for record messages
			Workers       int    `yaml:"workers"`    // Concurrent publishes
			QueueSize     int    `yaml:"queue_size"` // Records buffered before new ones are dropped
		} `yaml:"publisher"`

		Heartbeat struct {
			Enabled  bool          `yaml:"enabled"`  // Publish pipeline status; needs the publisher
			Topic    string        `yaml:"topic"`    // MQTT topic for heartbeat messages
			Interval time.Duration `yaml:"interval"` // Interval between heartbeats
			QOS      int           `yaml:"qos"`      // MQTT QoS level for heartbeat messages
		} `yaml:"heartbeat"`

		MetricsServer struct {
			Enabled         bool          `yaml:"enabled"`          // Serve Prometheus metrics
			Address         string        `yaml:"address"`          // Listen address
			ProcessInterval time.Duration `yaml:"process_interval"` // CPU and memory sampling period; 0 disables it
		} `yaml:"metrics_server"`
	} `yaml:"services"`

	Export struct {
		Enabled   bool   `yaml:"enabled"`   // Export the session log on exit
		Directory string `yaml:"directory"` // Destination directory
		Format    string `yaml:"format"`    // csv or json

		Upload struct {
			Enabled   bool   `yaml:"enabled"` // Copy exports to object storage
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Bucket    string `yaml:"bucket"`
			UseSSL    bool   `yaml:"use_ssl"`
		} `yaml:"upload"`
	} `yaml:"export"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human-readable console output
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration usable without a file.
func DefaultConfig() *Config {
	config := &Config{}
	config.Thresholds = evaluator.DefaultThresholdConfig()
	config.Export.Enabled = true
	// Zero is a meaningful settle delay, so its default is set before the file is read
	config.Serial.SettleDelay = constants.DefaultSettleDelay
	config.ApplyDefaults()
	return config
}

// ApplyDefaults fills zero-valued settings with their defaults. serial.settle_delay
// is left alone so that 0 disables it; a zero serial.read_timeout falls back to the
// default because reads must stay bounded for a disconnect to be observed.
func (c *Config) ApplyDefaults() {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = constants.DefaultBaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = constants.DefaultReadTimeout
	}
	if c.Serial.MaxLineLength == 0 {
		c.Serial.MaxLineLength = constants.DefaultMaxLineLength
	}
	if len(c.Serial.PortHints) == 0 {
		c.Serial.PortHints = append([]string(nil), constants.DefaultPortHints...)
	}
	if c.Samples.Capacity == 0 {
		c.Samples.Capacity = constants.DefaultSampleCapacity
	}
	if c.Protocol.BaselineDuration == 0 {
		c.Protocol.BaselineDuration = constants.DefaultBaselineDuration
	}
	if c.Services.Publisher.ClientID == "" {
		c.Services.Publisher.ClientID = "ortho-monitor"
	}
	if c.Services.Publisher.Topic == "" {
		c.Services.Publisher.Topic = "ortho/records"
	}
	if c.Services.Publisher.Workers == 0 {
		c.Services.Publisher.Workers = 2
	}
	if c.Services.Publisher.QueueSize == 0 {
		c.Services.Publisher.QueueSize = 64
	}
	if c.Services.Heartbeat.Topic == "" {
		c.Services.Heartbeat.Topic = "ortho/status"
	}
	if c.Services.Heartbeat.Interval == 0 {
		c.Services.Heartbeat.Interval = 30 * time.Second
	}
	if c.Services.MetricsServer.Address == "" {
		c.Services.MetricsServer.Address = ":9464"
	}
	if c.Export.Directory == "" {
		c.Export.Directory = "."
	}
	if c.Export.Format == "" {
		c.Export.Format = session.FormatCSV
	}
	if c.Logging.Level == "" {
		c.Logging.Level = zerolog.LevelInfoValue
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(constants.SupportedBaudRates, c.Serial.BaudRate) {
		errs = append(errs, fmt.Errorf("serial.baud_rate %d is not one of %v", c.Serial.BaudRate, constants.SupportedBaudRates))
	}
	if c.Serial.ReadTimeout < 0 {
		errs = append(errs, errors.New("serial.read_timeout must not be negative"))
	}
	if c.Serial.SettleDelay < 0 {
		errs = append(errs, errors.New("serial.settle_delay must not be negative"))
	}
	if c.Serial.MaxLineLength < 0 {
		errs = append(errs, errors.New("serial.max_line_length must not be negative"))
	}
	if c.Samples.Capacity < 0 {
		errs = append(errs, errors.New("samples.capacity must not be negative"))
	}

	thresholds := map[string]float64{
		constants.ThresholdDeltaHRMin:     c.Thresholds.DeltaHRMin,
		constants.ThresholdDeltaHRMax:     c.Thresholds.DeltaHRMax,
		constants.ThresholdPeakMax:        c.Thresholds.PeakMax,
		constants.ThresholdRecoveryMargin: c.Thresholds.RecoveryMargin,
	}
	for name, v := range thresholds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("thresholds.%s must be a finite number", name))
		}
	}

	if c.Services.MetricsServer.ProcessInterval < 0 {
		errs = append(errs, errors.New("services.metrics_server.process_interval must not be negative"))
	}
	if c.Protocol.BaselineDuration < 0 {
		errs = append(errs, errors.New("protocol.baseline_duration must not be negative"))
	}

	publisher := c.Services.Publisher
	if publisher.Enabled {
		if publisher.Broker == "" {
			errs = append(errs, errors.New("services.publisher.broker is required when the publisher is enabled"))
		}
		if publisher.QOS < 0 || publisher.QOS > 2 {
			errs = append(errs, fmt.Errorf("services.publisher.qos %d must be 0, 1 or 2", publisher.QOS))
		}
		if publisher.Workers < 0 || publisher.QueueSize < 0 {
			errs = append(errs, errors.New("services.publisher workers and queue_size must not be negative"))
		}
	}

	if heartbeat := c.Services.Heartbeat; heartbeat.Enabled {
		if !publisher.Enabled {
			errs = append(errs, errors.New("services.heartbeat requires services.publisher to be enabled"))
		}
		if heartbeat.Interval < 0 {
			errs = append(errs, errors.New("services.heartbeat.interval must not be negative"))
		}
		if heartbeat.QOS < 0 || heartbeat.QOS > 2 {
			errs = append(errs, fmt.Errorf("services.heartbeat.qos %d must be 0, 1 or 2", heartbeat.QOS))
		}
	}

	if c.Export.Format != session.FormatCSV && c.Export.Format != session.FormatJSON {
		errs = append(errs, fmt.Errorf("export.format %q must be csv or json", c.Export.Format))
	}
	if upload := c.Export.Upload; upload.Enabled && (upload.Endpoint == "" || upload.Bucket == "") {
		errs = append(errs, errors.New("export.upload.endpoint and export.upload.bucket are required when upload is enabled"))
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

// LoadConfig loads the YAML configuration from the specified file.
// Keys missing from the file keep their defaults; the result is validated.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()
	if err := fileClient.ReadYamlFile(filename, config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return config, nil
}
