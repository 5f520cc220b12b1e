package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "threads": 2,
  "engine": {
    "mode": "oracle",
    "minimum": "5 usd",
    "maxPriceAge": "2h",
    "priceSource": "0x00000000000000000000000000000000000000fe",
    "owner": "0x0000000000000000000000000000000000000001",
    "sweepMode": "aggregate"
  },
  "crawler": {"enabled": true, "interval": "15s", "confirmations": 12},
  "mongo": {"database": "stakegate", "address": "localhost:27017"},
  "rpc": {"type": "ws", "endpoint": "ws://127.0.0.1:8589", "custodian": "0x00000000000000000000000000000000000000c0", "gas": 21000},
  "api": {"enabled": true, "port": "3000", "operator": true},
  "nats": {"enabled": true, "url": "nats://127.0.0.1:4222", "subject": "stake", "reconnectWait": "2s"}
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, "oracle", cfg.Engine.Mode)
	assert.Equal(t, "5 usd", cfg.Engine.Minimum)
	assert.Equal(t, "aggregate", cfg.Engine.SweepMode)
	assert.Equal(t, "localhost:27017", cfg.Mongo.Address)
	assert.True(t, cfg.Crawler.Enabled)
	assert.Equal(t, uint64(12), cfg.Crawler.Confirmations)
	assert.Equal(t, "ws", cfg.Rpc.Type)
	assert.Equal(t, uint64(21000), cfg.Rpc.Gas)
	assert.True(t, cfg.Api.Operator)
	assert.True(t, cfg.Nats.Enabled)
	assert.Equal(t, "stake", cfg.Nats.Subject)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"threads": "two"}`), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
