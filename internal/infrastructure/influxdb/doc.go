// Package influxdb provides InfluxDB connectivity for the show core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, playback metric writing and health monitoring.
//
// # Purpose
//
// This package stores time-series data for:
//   - Scheduler tick timing (scheduler_tick)
//   - Play session starts and ends (playback_session)
//
// Every point carries a site tag.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTick(influxdb.TickSample{Duration: 800 * time.Microsecond, Contexts: 2})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write errors arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
