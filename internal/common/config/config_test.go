package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/common/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# test config
bus:
  kind: rabbitmq
rabbitmq:
  host: mq.internal
  port: 5673
  user: dispatch
  password: "secret"
database:
  host: db.internal
  user: postgres
  password: postgres
  database: dispatch
dispatch:
  speed_kmh: 25
  bid_window_s: 5
  poll_ms: 50
courier:
  tick_s: 0.5
  selection_timeout_s: 30
ordersource:
  menu_csv: /data/menus.csv
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rabbitmq", cfg.Bus.Kind)
	assert.Equal(t, "mq.internal", cfg.Rabbit.Host)
	assert.Equal(t, 5673, cfg.Rabbit.Port)
	assert.Equal(t, "secret", cfg.Rabbit.Password)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port) // default kept

	assert.Equal(t, 25.0, cfg.Dispatch.SpeedKmh)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.BidWindow)
	assert.Equal(t, 50*time.Millisecond, cfg.Dispatch.PollInterval)
	assert.Equal(t, 8.5, cfg.Dispatch.RewardEUR) // default kept

	assert.Equal(t, 500*time.Millisecond, cfg.Courier.Tick)
	assert.Equal(t, 30*time.Second, cfg.Courier.SelectionTimeout)
	assert.Equal(t, "/data/menus.csv", cfg.OrderSource.MenuCSV)
}

func TestLoadDefaultsAndErrors(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "bus:\n  kind: redis\n"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults().Dispatch, cfg.Dispatch)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	_, err = config.Load(writeConfig(t, "bus:\n  kind: carrier-pigeon\n"))
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
