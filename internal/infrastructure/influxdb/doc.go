// Package influxdb provides optional time-series metrics for dispatch
// activity.
//
// It wraps the official influxdb-client-go v2 library. When enabled,
// every play attempt is recorded as a point tagged by method and
// success, which makes "how often does the merge path fire" and
// "how long do dispatches take" queryable in Grafana.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without metrics
//	}
//
// Writes are batched and non-blocking. Async write errors surface only
// through the SetOnError callback.
package influxdb
