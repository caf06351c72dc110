package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tvcastd/tvcast/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestRecordDispatchDisconnected(t *testing.T) {
	// Must be a no-op, not a panic, when metrics are down.
	c := &Client{}
	c.RecordDispatch("airplay", false, time.Second, true)
	c.RecordScan(3, time.Second)
}

func TestBoolTag(t *testing.T) {
	if boolTag(true) != "true" || boolTag(false) != "false" {
		t.Error("boolTag mapping wrong")
	}
}
