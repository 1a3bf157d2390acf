package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementTick    = "scheduler_tick"
	measurementSession = "playback_session"
)

// TickSample is one scheduler tick as recorded in InfluxDB.
type TickSample struct {
	Duration time.Duration
	Contexts int
	Affected int
	Failures int
	At       time.Time
}

// SessionSample is a session start or end as recorded in InfluxDB.
type SessionSample struct {
	ContextID   string
	ContextName string
	Sequence    string
	Ended       bool
	Completed   bool
	Start       time.Duration
	End         time.Duration
	At          time.Time
}

// WriteTick writes one scheduler tick.
//
// Tags: site only. Fields: duration_us, contexts, affected, failures.
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteTick(s TickSample) {
	if !c.IsConnected() {
		return
	}

	c.write(measurementTick,
		nil,
		map[string]interface{}{
			"duration_us": s.Duration.Microseconds(),
			"contexts":    s.Contexts,
			"affected":    s.Affected,
			"failures":    s.Failures,
		},
		s.At,
	)
}

// WriteSessionEvent writes a session start or end.
//
// Tags: context_id, context, sequence, event (started|ended).
// Fields: start_ms, end_ms and, on end, completed.
func (c *Client) WriteSessionEvent(s SessionSample) {
	if !c.IsConnected() {
		return
	}

	event := "started"
	fields := map[string]interface{}{
		"start_ms": s.Start.Milliseconds(),
		"end_ms":   s.End.Milliseconds(),
	}
	if s.Ended {
		event = "ended"
		fields["completed"] = s.Completed
	}

	c.write(measurementSession,
		map[string]string{
			"context_id": s.ContextID,
			"context":    s.ContextName,
			"sequence":   s.Sequence,
			"event":      event,
		},
		fields,
		s.At,
	)
}

// write adds the site tag and queues the point. A zero timestamp means now.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}
	if c.site != "" {
		if tags == nil {
			tags = make(map[string]string, 1)
		}
		tags["site"] = c.site
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
