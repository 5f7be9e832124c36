package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/internal/utils"
	"github.com/benmeehan/ortho-monitor/pkg/mqtt"
	"github.com/rs/zerolog"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250
)

// PublisherService forwards evaluated session records to an MQTT topic.
// Publishing runs on a worker pool so a slow broker never holds up the event loop.
type PublisherService struct {
	Topic      string
	QOS        int
	Workers    int
	QueueSize  int
	MqttClient mqtt.MQTTClient
	Logger     zerolog.Logger

	mu   sync.Mutex
	pool *utils.WorkerPool
}

// NewPublisherService initializes a new PublisherService.
func NewPublisherService(topic string, qos, workers, queueSize int, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *PublisherService {
	return &PublisherService{
		Topic:      topic,
		QOS:        qos,
		Workers:    workers,
		QueueSize:  queueSize,
		MqttClient: mqttClient,
		Logger:     logger,
	}
}

// Start connects to the broker and starts the publishing workers.
func (p *PublisherService) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		p.Logger.Warn().Msg("PublisherService is already running")
		return errors.New("publisher service is already running")
	}

	if !p.MqttClient.IsConnected() {
		token := p.MqttClient.Connect()
		if !token.WaitTimeout(publishTimeout) {
			return errors.New("timed out connecting to mqtt broker")
		}
		if err := token.Error(); err != nil {
			p.Logger.Error().Err(err).Msg("Failed to connect to MQTT broker")
			return fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
	}

	p.pool = utils.NewWorkerPool(p.Workers, p.QueueSize)
	p.Logger.Info().Str("topic", p.Topic).Msg("PublisherService started successfully")
	return nil
}

// Stop drains queued records and disconnects from the broker.
func (p *PublisherService) Stop() error {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.mu.Unlock()

	if pool == nil {
		p.Logger.Warn().Msg("PublisherService is not running")
		return errors.New("publisher service is not running")
	}

	pool.Shutdown()
	p.MqttClient.Disconnect(disconnectQuiesce)

	p.Logger.Info().Msg("PublisherService stopped successfully")
	return nil
}

// PublishRecord queues a record for delivery. It does not wait for the broker.
func (p *PublisherService) PublishRecord(record models.SessionRecord) error {
	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()

	if pool == nil {
		return errors.New("publisher service is not running")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize session record: %w", err)
	}

	if err := pool.Submit(func() { p.publish(record.ID, payload) }); err != nil {
		p.Logger.Warn().Err(err).Str("record_id", record.ID).Msg("Dropping session record")
		return err
	}
	return nil
}

func (p *PublisherService) publish(recordID string, payload []byte) {
	token := p.MqttClient.Publish(p.Topic, byte(p.QOS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.Logger.Error().Str("record_id", recordID).Msg("Timed out publishing session record")
		return
	}
	if err := token.Error(); err != nil {
		p.Logger.Error().Err(err).Str("record_id", recordID).Msg("Failed to publish session record")
		return
	}
	p.Logger.Debug().Str("record_id", recordID).Str("topic", p.Topic).Msg("Session record published")
}
