package mqtt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMqttService_UninitializedClient(t *testing.T) {
	s := NewMqttService(file.NewFileService())

	token := s.Connect()
	assert.True(t, token.Wait())
	assert.ErrorIs(t, token.Error(), ErrNotInitialized)

	token = s.Publish("ortho/records", 1, false, []byte("{}"))
	<-token.Done()
	assert.ErrorIs(t, token.Error(), ErrNotInitialized)

	assert.False(t, s.IsConnected())
	s.Disconnect(0)
}

func TestMqttService_InitializeValidation(t *testing.T) {
	s := NewMqttService(file.NewFileService())

	assert.Error(t, s.Initialize(Options{}))

	err := s.Initialize(Options{Broker: "ssl://localhost:8883", CACertPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.ErrorContains(t, err, "failed to read CA certificate")

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	err = s.Initialize(Options{Broker: "ssl://localhost:8883", CACertPath: bad})
	assert.ErrorContains(t, err, "failed to append CA certificate")
}

func TestMqttService_InitializeWithoutTLS(t *testing.T) {
	s := NewMqttService(file.NewFileService())

	require.NoError(t, s.Initialize(Options{Broker: "tcp://localhost:1883", ClientID: "ortho-test", Username: "u", Password: "p"}))

	assert.False(t, s.IsConnected())
}
