package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/buffer"
	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/pkg/mqtt"
	"github.com/rs/zerolog"
)

// PipelineStatus is the read side of the ingestion pipeline reported in heartbeats.
type PipelineStatus interface {
	State() constants.PipelineState
	SessionID() string
	SampleCount() int
	LastBPM() (float64, bool)
	PlotRange() (buffer.PlotRange, bool)
	RecordCount() int
}

// HeartbeatService manages periodic heartbeat messages.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	ClientID   string
	QOS        int
	Pipeline   PipelineStatus
	MqttClient mqtt.MQTTClient
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, clientID string, qos int, pipeline PipelineStatus,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		ClientID:   clientID,
		QOS:        qos,
		Pipeline:   pipeline,
		MqttClient: mqttClient,
		Logger:     logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publishHeartbeat()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publishHeartbeat() {
	heartbeat := models.Heartbeat{
		ClientID:  h.ClientID,
		SessionID: h.Pipeline.SessionID(),
		Timestamp: time.Now(),
		State:     string(h.Pipeline.State()),
		Samples:   h.Pipeline.SampleCount(),
		Records:   h.Pipeline.RecordCount(),
	}
	if bpm, ok := h.Pipeline.LastBPM(); ok {
		heartbeat.LastBPM = bpm
	}
	if plot, ok := h.Pipeline.PlotRange(); ok {
		heartbeat.Plot = &plot
	}

	payload, err := json.Marshal(heartbeat)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		h.Logger.Error().Msg("Timed out publishing heartbeat message")
		return
	}
	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.Logger.Debug().Msg("Heartbeat published successfully")
	}
}
