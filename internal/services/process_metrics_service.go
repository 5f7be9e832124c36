package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/benmeehan/ortho-monitor/internal/observability"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

// ProcessSampler reports resource usage of one process.
type ProcessSampler interface {
	CPUPercent() (float64, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
}

// ProcessMetricsService periodically records the monitor's own CPU and memory use.
type ProcessMetricsService struct {
	Interval time.Duration
	Sampler  ProcessSampler
	Observer observability.Observer
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMetricsService samples the current process every interval.
func NewProcessMetricsService(interval time.Duration, observer observability.Observer, logger zerolog.Logger) (*ProcessMetricsService, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessMetricsService{
		Interval: interval,
		Sampler:  proc,
		Observer: observer,
		Logger:   logger,
	}, nil
}

// Start launches the sampling loop in a separate goroutine.
func (p *ProcessMetricsService) Start() error {
	if p.ctx != nil {
		p.Logger.Warn().Msg("ProcessMetricsService is already running")
		return errors.New("process metrics service is already running")
	}
	if p.Interval <= 0 {
		return errors.New("process metrics interval must be positive")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runSampleLoop()
	}()

	p.Logger.Info().Dur("interval", p.Interval).Msg("ProcessMetricsService started successfully")
	return nil
}

// Stop gracefully stops the sampling loop.
func (p *ProcessMetricsService) Stop() error {
	if p.ctx == nil {
		p.Logger.Warn().Msg("ProcessMetricsService is not running")
		return errors.New("process metrics service is not running")
	}

	p.cancel()
	p.wg.Wait()

	p.ctx = nil
	p.cancel = nil

	p.Logger.Info().Msg("ProcessMetricsService stopped successfully")
	return nil
}

func (p *ProcessMetricsService) runSampleLoop() {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.sample()
	for {
		select {
		case <-ticker.C:
			p.sample()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *ProcessMetricsService) sample() {
	if cpuPercent, err := p.Sampler.CPUPercent(); err == nil {
		p.Observer.SetGauge(observability.MetricProcessCPUPercent, cpuPercent)
	} else {
		p.Logger.Warn().Err(err).Msg("Failed to get CPU usage")
	}

	if memInfo, err := p.Sampler.MemoryInfo(); err == nil {
		p.Observer.SetGauge(observability.MetricProcessRSSBytes, float64(memInfo.RSS))
	} else {
		p.Logger.Warn().Err(err).Msg("Failed to get memory information")
	}
}
