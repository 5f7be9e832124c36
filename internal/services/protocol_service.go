package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/constants"
	"github.com/benmeehan/ortho-monitor/pkg/protocol"
	"github.com/rs/zerolog"
)

// Commander is the part of the ingestion pipeline the guided protocol drives.
type Commander interface {
	SendCommand(text string) error
	State() constants.PipelineState
}

// ProtocolService runs the 30-30-120 stand test: it starts the measurement once the
// device is connected, waits out the supine baseline and then signals the stand.
// The device itself times the standing and recovery phases and reports the summary.
type ProtocolService struct {
	BaselineDuration time.Duration
	PollInterval     time.Duration
	Commander        Commander
	Logger           zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	done   chan struct{}
	err    error
}

// NewProtocolService initializes a new ProtocolService.
func NewProtocolService(baselineDuration time.Duration, commander Commander, logger zerolog.Logger) *ProtocolService {
	if baselineDuration <= 0 {
		baselineDuration = constants.DefaultBaselineDuration
	}
	return &ProtocolService{
		BaselineDuration: baselineDuration,
		PollInterval:     constants.ProtocolPollInterval,
		Commander:        commander,
		Logger:           logger,
	}
}

// Start launches the protocol in a separate goroutine.
func (p *ProtocolService) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		p.Logger.Warn().Msg("ProtocolService is already running")
		return errors.New("protocol service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})
	p.err = nil

	p.wg.Add(1)
	go func(ctx context.Context, done chan struct{}) {
		defer p.wg.Done()
		defer close(done)
		err := p.run(ctx)

		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}(p.ctx, p.done)

	p.Logger.Info().Dur("baseline", p.BaselineDuration).Msg("ProtocolService started successfully")
	return nil
}

// Stop cancels a protocol in progress and waits for it to exit.
func (p *ProtocolService) Stop() error {
	p.mu.Lock()
	if p.ctx == nil {
		p.mu.Unlock()
		p.Logger.Warn().Msg("ProtocolService is not running")
		return errors.New("protocol service is not running")
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.ctx = nil
	p.cancel = nil
	p.mu.Unlock()

	p.Logger.Info().Msg("ProtocolService stopped successfully")
	return nil
}

// Done is closed once the stand command has been sent or the protocol was aborted.
func (p *ProtocolService) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err reports why the last run ended early, or nil if it completed.
func (p *ProtocolService) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *ProtocolService) run(ctx context.Context) error {
	if err := p.waitConnected(ctx); err != nil {
		return err
	}

	if err := p.Commander.SendCommand(protocol.CommandStart); err != nil {
		p.Logger.Error().Err(err).Msg("Failed to start measurement")
		return fmt.Errorf("failed to send start command: %w", err)
	}
	p.Logger.Info().Dur("baseline", p.BaselineDuration).Msg("Baseline started, stay lying down")

	timer := time.NewTimer(p.BaselineDuration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		p.Logger.Info().Msg("Protocol aborted during baseline")
		// Return the device to idle so the next run starts clean
		if err := p.Commander.SendCommand(protocol.CommandReset); err != nil {
			p.Logger.Warn().Err(err).Msg("Failed to reset device after abort")
		}
		return ctx.Err()
	case <-timer.C:
	}

	if err := p.Commander.SendCommand(protocol.CommandStand); err != nil {
		p.Logger.Error().Err(err).Msg("Failed to signal stand")
		return fmt.Errorf("failed to send stand command: %w", err)
	}
	p.Logger.Info().Msg("Stand up now, the device records the standing and recovery phases")
	return nil
}

// waitConnected blocks until the pipeline reports Connected.
func (p *ProtocolService) waitConnected(ctx context.Context) error {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		if p.Commander.State() == constants.StateConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			p.Logger.Info().Msg("Protocol aborted before the device connected")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
