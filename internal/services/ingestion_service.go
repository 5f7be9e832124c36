package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/buffer"
	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/evaluator"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/internal/observability"
	"github.com/benmeehan/ortho-monitor/internal/queue"
	"github.com/benmeehan/ortho-monitor/internal/session"
	"github.com/benmeehan/ortho-monitor/pkg/framer"
	"github.com/benmeehan/ortho-monitor/pkg/protocol"
	"github.com/benmeehan/ortho-monitor/pkg/serialport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IngestionConfig holds the connection parameters of the ingestion pipeline.
type IngestionConfig struct {
	Endpoint      string        // Port opened by Start
	BaudRate      int           // Speed used by Start
	ReadTimeout   time.Duration // Upper bound of a single blocking read
	SettleDelay   time.Duration // Wait after opening before data is trusted
	MaxLineLength int           // Cap for an unterminated line
}

// connection is the state owned by one connect/disconnect cycle.
type connection struct {
	id       string
	endpoint string
	baudRate int
	port     serialport.Port
	events   *queue.EventQueue
	cancel   context.CancelFunc
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (c *connection) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}

// IngestionService reads the device stream on a background worker, turns lines
// into readings and evaluated summaries, and hands results to the consumer
// through a per-connection event queue.
type IngestionService struct {
	// Configuration Fields
	config IngestionConfig

	// Dependencies
	opener     serialport.Opener
	samples    *buffer.SampleBuffer
	sessionLog *session.SessionLog
	thresholds *evaluator.Thresholds
	observer   observability.Observer
	logger     zerolog.Logger

	// Internal state management
	connMu  sync.Mutex // serialises Connect and Disconnect
	mu      sync.Mutex // guards state, conn and events
	writeMu sync.Mutex
	state   constants.PipelineState
	conn    *connection
	events  *queue.EventQueue
}

// NewIngestionService initializes a new IngestionService in the Disconnected state.
func NewIngestionService(config IngestionConfig, opener serialport.Opener, samples *buffer.SampleBuffer,
	sessionLog *session.SessionLog, thresholds *evaluator.Thresholds, observer observability.Observer,
	logger zerolog.Logger) *IngestionService {
	if config.BaudRate == 0 {
		config.BaudRate = constants.DefaultBaudRate
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = constants.DefaultReadTimeout
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if observer == nil {
		observer = observability.Nop{}
	}

	return &IngestionService{
		config:     config,
		opener:     opener,
		samples:    samples,
		sessionLog: sessionLog,
		thresholds: thresholds,
		observer:   observer,
		logger:     logger,
		state:      constants.StateDisconnected,
		events:     queue.NewEventQueue(),
	}
}

// Start connects to the configured endpoint.
func (s *IngestionService) Start() error {
	if s.config.Endpoint == "" {
		return errors.New("ingestion service has no endpoint configured")
	}
	return s.Connect(s.config.Endpoint, s.config.BaudRate)
}

// Stop disconnects from the device.
func (s *IngestionService) Stop() error {
	s.Disconnect()
	return nil
}

// Connect opens endpoint at baudRate and starts the reader worker.
// A fresh event queue is created so no events from an earlier session are delivered.
func (s *IngestionService) Connect(endpoint string, baudRate int) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.Lock()
	if state := s.state; state != constants.StateDisconnected {
		s.mu.Unlock()
		s.logger.Warn().Str("state", string(state)).Msg("Connect requested while a connection is active")
		return ErrAlreadyConnected
	}
	stale := s.conn
	s.mu.Unlock()

	// A worker that faulted has already released the port; make sure it has exited.
	if stale != nil {
		stale.cancel()
		_ = stale.close()
		<-stale.done
	}

	events := queue.NewEventQueue()
	s.mu.Lock()
	s.state = constants.StateConnecting
	s.conn = nil
	s.events = events
	s.mu.Unlock()

	s.logger.Info().Str("port", endpoint).Int("baud", baudRate).Msg("Opening serial port")

	port, err := s.opener.Open(endpoint, baudRate, s.config.ReadTimeout)
	if err != nil {
		connErr := &ConnectionError{Endpoint: endpoint, BaudRate: baudRate, Err: err}
		s.logger.Error().Err(err).Str("port", endpoint).Msg("Failed to open serial port")

		s.setState(constants.StateFaulted)
		events.Push(models.ErrorEvent(fmt.Sprintf("Error opening serial port: %v", err)))
		s.setState(constants.StateDisconnected)
		return connErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		id:       uuid.New().String(),
		endpoint: endpoint,
		baudRate: baudRate,
		port:     port,
		events:   events,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.runReader(ctx, conn)

	s.logger.Info().Str("port", endpoint).Str("session_id", conn.id).Msg("Serial port opened, waiting for device to settle")
	return nil
}

// Disconnect stops the worker and closes the port. Buffered partial lines are discarded.
func (s *IngestionService) Disconnect() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	wasActive := s.state != constants.StateDisconnected
	s.conn = nil
	s.state = constants.StateDisconnected
	events := s.events
	s.mu.Unlock()

	if conn == nil {
		return
	}

	// Closing the port wakes a worker blocked in Read.
	conn.cancel()
	if err := conn.close(); err != nil {
		s.logger.Warn().Err(err).Str("port", conn.endpoint).Msg("Error closing serial port")
	}
	<-conn.done

	if wasActive {
		events.Push(models.StatusEvent("Disconnected"))
		s.logger.Info().Str("port", conn.endpoint).Str("session_id", conn.id).Msg("Disconnected from device")
	}
}

// SendCommand writes a newline-terminated command to the device.
// It fails with ErrNotConnected unless the pipeline is Connected.
func (s *IngestionService) SendCommand(text string) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == constants.StateConnected && conn != nil
	events := s.events
	s.mu.Unlock()

	if !connected {
		events.Push(models.ErrorEvent("Not connected to the serial port"))
		s.logger.Warn().Str("command", text).Msg("Command rejected, not connected")
		return ErrNotConnected
	}

	s.writeMu.Lock()
	_, err := conn.port.Write(protocol.EncodeCommand(text))
	s.writeMu.Unlock()
	if err != nil {
		events.Push(models.ErrorEvent(fmt.Sprintf("Failed to send command: %v", err)))
		s.logger.Error().Err(err).Str("command", text).Msg("Failed to write command")
		return fmt.Errorf("failed to send command %q: %w", text, err)
	}

	s.logger.Debug().Str("command", text).Msg("Command sent")
	return nil
}

// PollEvents drains pending events of the current session in FIFO order.
func (s *IngestionService) PollEvents() []models.Event {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	return events.Drain()
}

// CurrentSamples returns the buffered readings, oldest first.
func (s *IngestionService) CurrentSamples() []float64 {
	return s.samples.Snapshot()
}

// SessionRecords returns every evaluated summary in arrival order.
func (s *IngestionService) SessionRecords() []models.SessionRecord {
	return s.sessionLog.ExportAll()
}

// SampleCount returns how many readings are buffered.
func (s *IngestionService) SampleCount() int {
	return s.samples.Len()
}

// LastBPM returns the most recent reading; ok is false before the first one.
func (s *IngestionService) LastBPM() (float64, bool) {
	return s.samples.Last()
}

// PlotRange returns chart bounds for the buffered readings.
func (s *IngestionService) PlotRange() (buffer.PlotRange, bool) {
	return s.samples.PlotRange()
}

// RecordCount returns how many summaries have been evaluated.
func (s *IngestionService) RecordCount() int {
	return s.sessionLog.Len()
}

// SetThreshold updates one evaluation threshold; the next summary uses it.
func (s *IngestionService) SetThreshold(name string, value float64) error {
	if err := s.thresholds.Set(name, value); err != nil {
		return err
	}
	s.logger.Info().Str("threshold", name).Float64("value", value).Msg("Threshold updated")
	return nil
}

// Thresholds returns the thresholds currently in effect.
func (s *IngestionService) Thresholds() evaluator.ThresholdConfig {
	return s.thresholds.Snapshot()
}

// State returns the current pipeline state.
func (s *IngestionService) State() constants.PipelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the ID of the active connection, or "" when disconnected.
func (s *IngestionService) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.state == constants.StateDisconnected {
		return ""
	}
	return s.conn.id
}

func (s *IngestionService) setState(state constants.PipelineState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// transition changes state only while conn is still the active connection.
// A faulted connection stays referenced until the next Connect or Disconnect reaps it.
func (s *IngestionService) transition(conn *connection, state constants.PipelineState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return false
	}
	s.state = state
	return true
}

// runReader is the per-connection worker: settle, announce, then read until stopped or faulted.
func (s *IngestionService) runReader(ctx context.Context, conn *connection) {
	defer close(conn.done)
	defer conn.cancel()

	if s.config.SettleDelay > 0 {
		timer := time.NewTimer(s.config.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if !s.transition(conn, constants.StateConnected) {
		return
	}
	s.dispatch(conn, protocol.Status{Text: fmt.Sprintf("Connected to %s @ %d", conn.endpoint, conn.baudRate)})
	s.logger.Info().Str("port", conn.endpoint).Int("baud", conn.baudRate).Msg("Device connected")

	lineFramer := framer.NewFramer(s.config.MaxLineLength)
	defer func() {
		if pending := lineFramer.Buffered(); pending > 0 {
			s.logger.Debug().Int("bytes", pending).Str("port", conn.endpoint).Msg("Discarded partial line")
		}
	}()
	buf := make([]byte, constants.ReadChunkSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := conn.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fault(conn, err)
			return
		}
		if n == 0 {
			continue
		}

		lines, err := lineFramer.Feed(buf[:n])
		if err != nil {
			s.observer.IncCounter(observability.MetricFramingErrors, 1)
			s.logger.Warn().Err(err).Str("port", conn.endpoint).Msg("Dropped oversized line")
		}

		for _, line := range lines {
			if ctx.Err() != nil {
				return
			}
			s.handleLine(conn, line)
		}
	}
}

// fault ends a session after a transport read error. No reconnect is attempted.
func (s *IngestionService) fault(conn *connection, err error) {
	s.logger.Error().Err(err).Str("port", conn.endpoint).Str("session_id", conn.id).Msg("Serial read failed")
	s.observer.IncCounter(observability.MetricTransportFaults, 1)

	s.transition(conn, constants.StateFaulted)
	conn.events.Push(models.ErrorEvent(fmt.Sprintf("Serial read error: %v", err)))

	if cerr := conn.close(); cerr != nil {
		s.logger.Warn().Err(cerr).Str("port", conn.endpoint).Msg("Error closing serial port after fault")
	}
	s.transition(conn, constants.StateDisconnected)
}

// handleLine parses a framed line and dispatches it.
func (s *IngestionService) handleLine(conn *connection, line string) {
	s.observer.IncCounter(observability.MetricLinesFramed, 1)
	s.dispatch(conn, protocol.Parse(line))
}

// dispatch routes a message to the sample buffer, the evaluator or the event queue.
func (s *IngestionService) dispatch(conn *connection, message protocol.Message) {
	switch msg := message.(type) {
	case protocol.Status:
		conn.events.Push(models.StatusEvent(msg.Text))

	case protocol.Reading:
		s.samples.Append(msg.BPM)
		s.observer.IncCounter(observability.MetricReadings, 1)
		s.observer.SetGauge(observability.MetricLastBPM, msg.BPM)
		s.observer.SetGauge(observability.MetricSampleBufferLength, float64(s.samples.Len()))
		conn.events.Push(models.ReadingEvent(msg.BPM))

	case protocol.Metrics:
		result := evaluator.Evaluate(msg, s.thresholds.Snapshot())
		record := s.sessionLog.Record(conn.id, msg, result)

		s.observer.IncCounter(observability.MetricSummaries, 1)
		if result.Verdict == models.VerdictAttention {
			s.observer.IncCounter(observability.MetricAttentionVerdicts, 1)
		}
		conn.events.Push(models.MetricsEvent(record, result))

		s.logger.Info().
			Str("session_id", conn.id).
			Float64("baseline", msg.Baseline).
			Float64("peak", msg.Peak).
			Float64("dhr", msg.DeltaHR).
			Float64("tpeak", msg.TPeak).
			Float64("recov60", msg.Recov60).
			Str("verdict", string(result.Verdict)).
			Strs("reasons", result.Reasons).
			Msg("Metrics evaluated")

	case protocol.Unrecognized:
		s.observer.IncCounter(observability.MetricUnrecognizedLines, 1)
		s.logger.Debug().Str("line", msg.Text).Msg("Ignoring unrecognized line")
	}
}
