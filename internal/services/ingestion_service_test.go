package services

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/buffer"
	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/internal/evaluator"
	"github.com/benmeehan/ortho-monitor/internal/models"
	"github.com/benmeehan/ortho-monitor/internal/session"
	"github.com/benmeehan/ortho-monitor/pkg/serialport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPort = "/dev/ttyFAKE0"

// MockOpener is a mock implementation of the serialport.Opener interface
type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(name string, baud int, readTimeout time.Duration) (serialport.Port, error) {
	args := m.Called(name, baud, readTimeout)
	port, _ := args.Get(0).(serialport.Port)
	return port, args.Error(1)
}

// fakePort feeds device output through a pipe and records what the host writes.
type fakePort struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newFakePort() *fakePort {
	pr, pw := io.Pipe()
	return &fakePort{pr: pr, pw: pw}
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.pr.Close()
}

// emit blocks until the worker has read every byte.
func (p *fakePort) emit(t *testing.T, data string) {
	t.Helper()
	_, err := p.pw.Write([]byte(data))
	require.NoError(t, err)
}

func (p *fakePort) fail(err error) {
	p.pw.CloseWithError(err)
}

func (p *fakePort) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// eventCollector accumulates polled events across Eventually ticks.
type eventCollector struct {
	svc    *IngestionService
	events []models.Event
}

func (c *eventCollector) waitFor(t *testing.T, match func(models.Event) bool) models.Event {
	t.Helper()
	var found models.Event
	require.Eventually(t, func() bool {
		c.events = append(c.events, c.svc.PollEvents()...)
		for _, e := range c.events {
			if match(e) {
				found = e
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return found
}

func isType(eventType models.EventType) func(models.Event) bool {
	return func(e models.Event) bool { return e.Type == eventType }
}

func newTestService(opener serialport.Opener, settle time.Duration) *IngestionService {
	return NewIngestionService(
		IngestionConfig{Endpoint: testPort, BaudRate: 115200, ReadTimeout: time.Second, SettleDelay: settle},
		opener,
		buffer.NewSampleBuffer(10),
		session.NewSessionLog(),
		evaluator.NewThresholds(evaluator.DefaultThresholdConfig()),
		nil,
		zerolog.Nop(),
	)
}

func connectFake(t *testing.T, svc *IngestionService, opener *MockOpener) (*fakePort, *eventCollector) {
	t.Helper()
	port := newFakePort()
	opener.On("Open", testPort, 115200, time.Second).Return(port, nil).Once()

	require.NoError(t, svc.Connect(testPort, 115200))

	collector := &eventCollector{svc: svc}
	status := collector.waitFor(t, isType(models.EventStatusChanged))
	assert.Equal(t, "Connected to /dev/ttyFAKE0 @ 115200", status.Text)
	assert.Equal(t, constants.StateConnected, svc.State())
	return port, collector
}

func TestIngestionService_ConnectEmitsStatus(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)

	assert.Equal(t, constants.StateDisconnected, svc.State())
	assert.Empty(t, svc.SessionID())

	connectFake(t, svc, opener)
	assert.NotEmpty(t, svc.SessionID())

	svc.Disconnect()
	assert.Equal(t, constants.StateDisconnected, svc.State())
	opener.AssertExpectations(t)
}

func TestIngestionService_ReadingsAndMetricsFlow(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	port, collector := connectFake(t, svc, opener)
	defer svc.Disconnect()

	port.emit(t, "BPM: 72\nBPM: 7")
	port.emit(t, "3.5\nfirmware v1.2 ready\nMETRICS baseline=45 peak=90 dHR=20 tpeak=10 recov60=55\n")

	metricsEvent := collector.waitFor(t, isType(models.EventMetricsArrived))

	var readings []float64
	for _, e := range collector.events {
		if e.Type == models.EventReadingArrived {
			readings = append(readings, e.BPM)
		}
	}
	assert.Equal(t, []float64{72, 73.5}, readings)
	assert.Equal(t, []float64{72, 73.5}, svc.CurrentSamples())
	assert.Equal(t, 2, svc.SampleCount())
	last, ok := svc.LastBPM()
	require.True(t, ok)
	assert.Equal(t, 73.5, last)

	assert.Equal(t, models.VerdictAttention, metricsEvent.Verdict)
	require.Len(t, metricsEvent.Reasons, 1)
	assert.Contains(t, metricsEvent.Reasons[0], "Bradycardia")
	require.NotNil(t, metricsEvent.Record)
	assert.Equal(t, svc.SessionID(), metricsEvent.Record.SessionID)

	records := svc.SessionRecords()
	require.Len(t, records, 1)
	assert.Equal(t, *metricsEvent.Record, records[0])
	assert.Equal(t, 1, svc.RecordCount())

	// Events arrive in framing order
	var order []models.EventType
	for _, e := range collector.events {
		order = append(order, e.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventStatusChanged,
		models.EventReadingArrived,
		models.EventReadingArrived,
		models.EventMetricsArrived,
	}, order)
}

func TestIngestionService_ThresholdEditsApplyToNextSummary(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	port, collector := connectFake(t, svc, opener)
	defer svc.Disconnect()

	port.emit(t, "METRICS baseline=70 peak=90 dHR=20 tpeak=10 recov60=75\n")
	first := collector.waitFor(t, isType(models.EventMetricsArrived))
	assert.Equal(t, models.VerdictNormal, first.Verdict)

	require.NoError(t, svc.SetThreshold(constants.ThresholdPeakMax, 85))
	assert.Equal(t, 85.0, svc.Thresholds().PeakMax)
	assert.ErrorIs(t, svc.SetThreshold("bogus", 1), evaluator.ErrUnknownThreshold)

	collector.events = nil
	port.emit(t, "METRICS baseline=70 peak=90 dHR=20 tpeak=10 recov60=75\n")
	second := collector.waitFor(t, isType(models.EventMetricsArrived))
	assert.Equal(t, models.VerdictAttention, second.Verdict)
	assert.Equal(t, []string{"Peak >85 bpm → hyperadrenergic"}, second.Reasons)
}

func TestIngestionService_SendCommandWhileDisconnected(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)

	err := svc.SendCommand("CMD:START")

	assert.ErrorIs(t, err, ErrNotConnected)
	events := svc.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventErrorOccurred, events[0].Type)
	assert.Equal(t, constants.StateDisconnected, svc.State())
	opener.AssertNotCalled(t, "Open", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestionService_SendCommandWhileConnected(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	port, _ := connectFake(t, svc, opener)

	require.NoError(t, svc.SendCommand("CMD:START"))
	require.NoError(t, svc.SendCommand("CMD:STAND"))
	assert.Equal(t, "CMD:START\nCMD:STAND\n", port.output())

	svc.Disconnect()
	assert.ErrorIs(t, svc.SendCommand("CMD:RESET"), ErrNotConnected)
	assert.Equal(t, "CMD:START\nCMD:STAND\n", port.output())
}

func TestIngestionService_OpenFailure(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	opener.On("Open", testPort, 115200, time.Second).Return(nil, errors.New("no such device")).Once()

	err := svc.Connect(testPort, 115200)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, testPort, connErr.Endpoint)
	assert.EqualError(t, connErr.Unwrap(), "no such device")
	assert.Equal(t, constants.StateDisconnected, svc.State())

	events := svc.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventErrorOccurred, events[0].Type)
	assert.Contains(t, events[0].Text, "no such device")
}

func TestIngestionService_ReadErrorFaultsSession(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	port, collector := connectFake(t, svc, opener)

	port.fail(errors.New("device unplugged"))

	failure := collector.waitFor(t, isType(models.EventErrorOccurred))
	assert.Contains(t, failure.Text, "device unplugged")
	require.Eventually(t, func() bool { return svc.State() == constants.StateDisconnected }, time.Second, 5*time.Millisecond)
	assert.True(t, port.isClosed())
	assert.ErrorIs(t, svc.SendCommand("CMD:START"), ErrNotConnected)

	// No automatic reconnect, but an explicit one works
	connectFake(t, svc, opener)
	svc.Disconnect()
	opener.AssertExpectations(t)
}

// hungUpPort delivers one line and then behaves like a tty whose device went away.
type hungUpPort struct {
	mu     sync.Mutex
	sent   bool
	closed bool
}

func (p *hungUpPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.sent {
		p.sent = true
		return copy(b, "BPM: 70\n"), nil
	}
	return 0, io.EOF
}

func (p *hungUpPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *hungUpPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *hungUpPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func TestIngestionService_HangUpFaultsSession(t *testing.T) {
	// Setup
	opener := new(MockOpener)
	raw := &hungUpPort{}
	opener.On("Open", testPort, 115200, time.Second).Return(serialport.NewTimeoutPort(raw, time.Second), nil).Once()
	svc := newTestService(opener, 0)
	collector := &eventCollector{svc: svc}

	// Execute
	require.NoError(t, svc.Connect(testPort, 115200))

	// Assert
	collector.waitFor(t, isType(models.EventReadingArrived))
	failure := collector.waitFor(t, isType(models.EventErrorOccurred))
	assert.Contains(t, failure.Text, serialport.ErrHangUp.Error())
	require.Eventually(t, func() bool { return svc.State() == constants.StateDisconnected }, time.Second, 5*time.Millisecond)
	assert.True(t, raw.isClosed())
	opener.AssertExpectations(t)
}

func TestIngestionService_ReconnectDropsStaleEvents(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	first, _ := connectFake(t, svc, opener)

	first.emit(t, "BPM: 60\n")
	require.Eventually(t, func() bool { return len(svc.CurrentSamples()) == 1 }, time.Second, 5*time.Millisecond)
	svc.Disconnect()

	second, collector := connectFake(t, svc, opener)
	defer svc.Disconnect()
	second.emit(t, "BPM: 61\n")
	collector.waitFor(t, isType(models.EventReadingArrived))

	for _, e := range collector.events {
		assert.NotEqual(t, 60.0, e.BPM, "stale reading from previous session")
		assert.NotEqual(t, "Disconnected", e.Text, "stale status from previous session")
	}
	assert.Equal(t, []float64{60, 61}, svc.CurrentSamples())
}

func TestIngestionService_PartialLineDiscardedOnDisconnect(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	first, _ := connectFake(t, svc, opener)

	first.emit(t, "BPM: 9")
	svc.Disconnect()

	second, collector := connectFake(t, svc, opener)
	defer svc.Disconnect()
	second.emit(t, "1\nBPM: 70\n")
	collector.waitFor(t, isType(models.EventReadingArrived))

	assert.Equal(t, []float64{70}, svc.CurrentSamples())
}

func TestIngestionService_ConnectWhileActive(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	connectFake(t, svc, opener)
	defer svc.Disconnect()

	assert.ErrorIs(t, svc.Connect(testPort, 115200), ErrAlreadyConnected)
	opener.AssertNumberOfCalls(t, "Open", 1)
}

func TestIngestionService_DisconnectDuringSettle(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, time.Hour)
	port := newFakePort()
	opener.On("Open", testPort, 115200, time.Second).Return(port, nil).Once()

	require.NoError(t, svc.Connect(testPort, 115200))
	assert.Equal(t, constants.StateConnecting, svc.State())
	assert.ErrorIs(t, svc.SendCommand("CMD:START"), ErrNotConnected)

	done := make(chan struct{})
	go func() {
		svc.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not interrupt the settle delay")
	}

	assert.Equal(t, constants.StateDisconnected, svc.State())
	assert.True(t, port.isClosed())
	for _, e := range svc.PollEvents() {
		assert.NotContains(t, e.Text, "Connected to")
	}
}

func TestIngestionService_DisconnectIsIdempotent(t *testing.T) {
	svc := newTestService(new(MockOpener), 0)

	svc.Disconnect()
	svc.Disconnect()

	assert.Empty(t, svc.PollEvents())
}

func TestIngestionService_StartStop(t *testing.T) {
	opener := new(MockOpener)
	svc := newTestService(opener, 0)
	port := newFakePort()
	opener.On("Open", testPort, 115200, time.Second).Return(port, nil).Once()

	require.NoError(t, svc.Start())
	require.Eventually(t, func() bool { return svc.State() == constants.StateConnected }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Stop())
	assert.Equal(t, constants.StateDisconnected, svc.State())

	noEndpoint := NewIngestionService(IngestionConfig{}, opener, buffer.NewSampleBuffer(1), session.NewSessionLog(),
		evaluator.NewThresholds(evaluator.DefaultThresholdConfig()), nil, zerolog.Nop())
	assert.Error(t, noEndpoint.Start())
}
