package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordDispatch writes one dispatch measurement. Implements the
// dispatch.MetricsRecorder interface.
//
// The method tag is empty for failed dispatches that never reached a
// playback path; duration covers the full attempt including any
// server-side transform.
func (c *Client) RecordDispatch(method string, mergeUsed bool, duration time.Duration, success bool) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"success": boolTag(success),
	}
	if method != "" {
		tags["method"] = method
	}

	point := write.NewPoint(
		"dispatch",
		tags,
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
			"merge_used":  mergeUsed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordScan writes one discovery sweep measurement.
func (c *Client) RecordScan(deviceCount int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scan",
		nil,
		map[string]interface{}{
			"device_count": deviceCount,
			"duration_ms":  float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
