package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const metricsShutdownTimeout = 5 * time.Second

// MetricsServerService exposes pipeline metrics and a health check over HTTP.
type MetricsServerService struct {
	Address string
	Handler http.Handler
	Logger  zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewMetricsServerService initializes a new MetricsServerService serving handler on /metrics.
func NewMetricsServerService(address string, handler http.Handler, logger zerolog.Logger) *MetricsServerService {
	return &MetricsServerService{
		Address: address,
		Handler: handler,
		Logger:  logger,
	}
}

// Start binds the listener and serves in a separate goroutine.
func (m *MetricsServerService) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		m.Logger.Warn().Msg("MetricsServerService is already running")
		return errors.New("metrics server is already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	listener, err := net.Listen("tcp", m.Address)
	if err != nil {
		m.Logger.Error().Err(err).Str("address", m.Address).Msg("Failed to bind metrics server")
		return err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.wg.Add(1)
	go func(server *http.Server) {
		defer m.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error().Err(err).Msg("Metrics server exited")
		}
	}(m.server)

	m.Logger.Info().Str("address", listener.Addr().String()).Msg("MetricsServerService started successfully")
	return nil
}

// Stop shuts the server down gracefully.
func (m *MetricsServerService) Stop() error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.listener = nil
	m.mu.Unlock()

	if server == nil {
		m.Logger.Warn().Msg("MetricsServerService is not running")
		return errors.New("metrics server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	m.wg.Wait()
	if err != nil {
		return err
	}

	m.Logger.Info().Msg("MetricsServerService stopped successfully")
	return nil
}

// Addr returns the bound address, or "" when stopped.
func (m *MetricsServerService) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
