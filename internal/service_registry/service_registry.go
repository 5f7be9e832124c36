package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/observability"
	"github.com/benmeehan/ortho-monitor/internal/services"
	"github.com/benmeehan/ortho-monitor/internal/utils"
	"github.com/benmeehan/ortho-monitor/pkg/mqtt"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/rs/zerolog"
)

// Service is the interface for all plug-in services
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of the monitor's services.
type ServiceRegistry struct {
	services *orderedmap.OrderedMap[string, Service] // Registration order is start order
	started  []string
	Logger   zerolog.Logger
}

// NewServiceRegistry initializes an empty registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: orderedmap.NewOrderedMap[string, Service](),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services.Get(name); exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services.Set(name, svc)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Service returns a registered service by name.
func (sr *ServiceRegistry) Service(name string) (Service, bool) {
	return sr.services.Get(name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return sr.services.Keys()
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	for el := sr.services.Front(); el != nil; el = el.Next() {
		sr.Logger.Info().Msgf("Starting service: %s", el.Key)
		if err := el.Value.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", el.Key)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			if stopErr := sr.StopServices(); stopErr != nil {
				return errors.Join(fmt.Errorf("failed to start %s: %w", el.Key, err), stopErr)
			}
			return fmt.Errorf("failed to start %s: %w", el.Key, err)
		}
		sr.started = append(sr.started, el.Key)
	}

	return nil
}

// StopServices stops started services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.started) - 1; i >= 0; i-- {
		name := sr.started[i]
		svc, _ := sr.services.Get(name)
		if err := svc.Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	sr.started = nil

	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// Dependencies are the shared components services are built from.
type Dependencies struct {
	Ingestion      *services.IngestionService
	Observer       observability.Observer
	MetricsHandler http.Handler
	MqttClient     mqtt.MQTTClient // Required only when the publisher is enabled
	ClientID       string
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    constants.MetricsServerServiceName,
			enabled: config.Services.MetricsServer.Enabled,
			constructor: func() (Service, error) {
				if deps.MetricsHandler == nil {
					return nil, errors.New("metrics server enabled without a metrics handler")
				}
				return services.NewMetricsServerService(
					config.Services.MetricsServer.Address,
					deps.MetricsHandler,
					sr.Logger,
				), nil
			},
		},
		{
			name:    constants.ProcessMetricsServiceName,
			enabled: config.Services.MetricsServer.Enabled && config.Services.MetricsServer.ProcessInterval > 0,
			constructor: func() (Service, error) {
				if deps.Observer == nil {
					return nil, errors.New("process metrics enabled without an observer")
				}
				return services.NewProcessMetricsService(
					config.Services.MetricsServer.ProcessInterval,
					deps.Observer,
					sr.Logger,
				)
			},
		},
		{
			name:    constants.PublisherServiceName,
			enabled: config.Services.Publisher.Enabled,
			constructor: func() (Service, error) {
				if deps.MqttClient == nil {
					return nil, errors.New("publisher enabled without an mqtt client")
				}
				return services.NewPublisherService(
					config.Services.Publisher.Topic,
					config.Services.Publisher.QOS,
					config.Services.Publisher.Workers,
					config.Services.Publisher.QueueSize,
					deps.MqttClient,
					sr.Logger,
				), nil
			},
		},
		{
			name:    constants.HeartbeatServiceName,
			enabled: config.Services.Publisher.Enabled && config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				if deps.MqttClient == nil || deps.Ingestion == nil {
					return nil, errors.New("heartbeat enabled without an mqtt client and pipeline")
				}
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					deps.ClientID,
					config.Services.Heartbeat.QOS,
					deps.Ingestion,
					deps.MqttClient,
					sr.Logger,
				), nil
			},
		},
		{
			name:    constants.IngestionServiceName,
			enabled: true,
			constructor: func() (Service, error) {
				if deps.Ingestion == nil {
					return nil, errors.New("ingestion service is required")
				}
				return deps.Ingestion, nil
			},
		},
		{
			name:    constants.ProtocolServiceName,
			enabled: config.Protocol.Enabled,
			constructor: func() (Service, error) {
				return services.NewProtocolService(
					config.Protocol.BaselineDuration,
					deps.Ingestion,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
