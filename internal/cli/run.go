package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/buffer"
	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/evaluator"
	"github.com/benmeehan/ortho-monitor/internal/observability"
	"github.com/benmeehan/ortho-monitor/internal/service_registry"
	"github.com/benmeehan/ortho-monitor/internal/services"
	"github.com/benmeehan/ortho-monitor/internal/session"
	"github.com/benmeehan/ortho-monitor/internal/utils"
	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/benmeehan/ortho-monitor/pkg/mqtt"
	"github.com/benmeehan/ortho-monitor/pkg/s3"
	"github.com/benmeehan/ortho-monitor/pkg/serialport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const exportTimeout = 30 * time.Second

// Command-specific flags
var (
	runPortFlag     string
	runBaudFlag     int
	runProtocolFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the sensor and monitor heart rate",
	Long: `Connect to the heart-rate sensor, stream readings and evaluated summaries
to the log and export the session when interrupted.

With --protocol the guided 30-30-120 test is started once the device is ready:
the baseline is recorded lying down, then the stand command is sent.

Examples:
  monitor run
  monitor run --port /dev/ttyACM0 --baud 115200
  monitor run --protocol`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			config.Serial.Port = runPortFlag
		}
		if cmd.Flags().Changed("baud") {
			config.Serial.BaudRate = runBaudFlag
		}
		if cmd.Flags().Changed("protocol") {
			config.Protocol.Enabled = runProtocolFlag
		}
		if err := config.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(os.Stdout, config.Logging.Level, config.Logging.Pretty)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runMonitor(ctx, config, logger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPortFlag, "port", "", "serial port (default: auto-select)")
	runCmd.Flags().IntVar(&runBaudFlag, "baud", constants.DefaultBaudRate, "serial baud rate")
	runCmd.Flags().BoolVar(&runProtocolFlag, "protocol", false, "run the guided 30-30-120 protocol")
}

// runMonitor wires the pipeline, runs it until ctx ends or the device is lost, then exports.
func runMonitor(ctx context.Context, config *utils.Config, logger zerolog.Logger) error {
	port := config.Serial.Port
	if port == "" {
		ports, err := listPorts()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}
		port, err = serialport.AutoSelect(ports, config.Serial.PortHints)
		if err != nil {
			return err
		}
		logger.Info().Str("port", port).Strs("available", ports).Msg("Auto-selected serial port")
	}

	fileClient := file.NewFileService()
	observer := observability.NewPromObs()

	ingestion := services.NewIngestionService(
		services.IngestionConfig{
			Endpoint:      port,
			BaudRate:      config.Serial.BaudRate,
			ReadTimeout:   config.Serial.ReadTimeout,
			SettleDelay:   config.Serial.SettleDelay,
			MaxLineLength: config.Serial.MaxLineLength,
		},
		serialport.NewSerialOpener(),
		buffer.NewSampleBuffer(config.Samples.Capacity),
		session.NewSessionLog(),
		evaluator.NewThresholds(config.Thresholds),
		observer,
		logger,
	)

	deps := service_registry.Dependencies{
		Ingestion:      ingestion,
		Observer:       observer,
		MetricsHandler: observer.Handler(),
	}

	if config.Services.Publisher.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.Services.Publisher.ClientID + "-" + uuid.New().String()
		logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

		mqttClient := mqtt.NewMqttService(fileClient)
		err := mqttClient.Initialize(mqtt.Options{
			Broker:     config.Services.Publisher.Broker,
			ClientID:   clientID,
			CACertPath: config.Services.Publisher.CACertificate,
			Username:   config.Services.Publisher.Username,
			Password:   config.Services.Publisher.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize mqtt client: %w", err)
		}
		deps.MqttClient = mqttClient
		deps.ClientID = clientID
	}

	serviceRegistry := service_registry.NewServiceRegistry(logger)
	if err := serviceRegistry.RegisterServices(config, deps); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	logger.Info().Msg("All services started successfully")

	var sink recordSink
	if svc, ok := serviceRegistry.Service(constants.PublisherServiceName); ok {
		sink = svc.(*services.PublisherService)
	}

	loopErr := consumeEvents(ctx, ingestion, sink, constants.EventPollInterval, logger)
	if errors.Is(loopErr, context.Canceled) {
		loopErr = nil
	}

	logger.Info().Msg("Shutting down gracefully...")
	stopErr := serviceRegistry.StopServices()

	if config.Export.Enabled {
		if err := exportSession(config, ingestion, fileClient, logger); err != nil {
			logger.Error().Err(err).Msg("Failed to export session")
		}
	}

	return errors.Join(loopErr, stopErr)
}

// exportSession writes the session log and uploads it when configured.
func exportSession(config *utils.Config, ingestion *services.IngestionService, fileClient file.FileOperations,
	logger zerolog.Logger) error {
	records := ingestion.SessionRecords()
	if len(records) == 0 {
		logger.Info().Msg("No session records to export")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
	defer cancel()

	var storage s3.ObjectStorageClient
	if upload := config.Export.Upload; upload.Enabled {
		objectStorage := s3.NewObjectStorage()
		if err := objectStorage.Connect(ctx, upload.Endpoint, upload.AccessKey, upload.SecretKey, upload.UseSSL); err != nil {
			logger.Error().Err(err).Msg("Object storage unavailable, keeping export local")
		} else {
			storage = objectStorage
		}
	}

	exporter := services.NewExportService(config.Export.Format, config.Export.Directory, config.Export.Upload.Bucket,
		fileClient, storage, logger)
	_, err := exporter.Export(ctx, records)
	return err
}
