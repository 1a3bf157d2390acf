package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// fakeWriter captures points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func newFakeClient(site string) (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, site: site, connected: true}, w
}

func tagsOf(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fieldsOf(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestWriteTick(t *testing.T) {
	client, w := newFakeClient("stage-a")
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	client.WriteTick(TickSample{
		Duration: 1500 * time.Microsecond,
		Contexts: 3,
		Affected: 12,
		Failures: 1,
		At:       at,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementTick {
		t.Errorf("measurement = %s, want %s", p.Name(), measurementTick)
	}
	if !p.Time().Equal(at) {
		t.Errorf("time = %v, want %v", p.Time(), at)
	}
	if tags := tagsOf(p); tags["site"] != "stage-a" {
		t.Errorf("tags = %v, want site=stage-a", tags)
	}

	fields := fieldsOf(p)
	want := map[string]int64{"duration_us": 1500, "contexts": 3, "affected": 12, "failures": 1}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %v (%T), want %d", k, fields[k], fields[k], v)
		}
	}
}

func TestWriteSessionEvent(t *testing.T) {
	tests := []struct {
		name          string
		sample        SessionSample
		wantEvent     string
		wantCompleted interface{}
	}{
		{
			name:      "started",
			sample:    SessionSample{ContextID: "c1", ContextName: "Main", Sequence: "act one", End: 90 * time.Second},
			wantEvent: "started",
		},
		{
			name:          "ended completed",
			sample:        SessionSample{ContextID: "c1", Sequence: "act one", Ended: true, Completed: true},
			wantEvent:     "ended",
			wantCompleted: true,
		},
		{
			name:          "ended stopped",
			sample:        SessionSample{ContextID: "c1", Sequence: "act one", Ended: true},
			wantEvent:     "ended",
			wantCompleted: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, w := newFakeClient("")
			client.WriteSessionEvent(tt.sample)

			if len(w.points) != 1 {
				t.Fatalf("points = %d, want 1", len(w.points))
			}
			p := w.points[0]
			if p.Name() != measurementSession {
				t.Errorf("measurement = %s", p.Name())
			}
			tags := tagsOf(p)
			if tags["event"] != tt.wantEvent || tags["context_id"] != "c1" || tags["sequence"] != "act one" {
				t.Errorf("tags = %v", tags)
			}
			if _, ok := tags["site"]; ok {
				t.Error("empty site should not be tagged")
			}
			fields := fieldsOf(p)
			if fields["completed"] != tt.wantCompleted {
				t.Errorf("completed = %v, want %v", fields["completed"], tt.wantCompleted)
			}
			if fields["end_ms"] != tt.sample.End.Milliseconds() {
				t.Errorf("end_ms = %v, want %d", fields["end_ms"], tt.sample.End.Milliseconds())
			}
			if p.Time().IsZero() {
				t.Error("zero sample time should default to now")
			}
		})
	}
}

func TestWriteTick_SiteIsOnlyTag(t *testing.T) {
	client, w := newFakeClient("stage-b")

	client.WriteTick(TickSample{Contexts: 1})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	if tags := tagsOf(w.points[0]); len(tags) != 1 || tags["site"] != "stage-b" {
		t.Errorf("tags = %v, want only site", tags)
	}
}

func TestWriteTick_NoSite(t *testing.T) {
	client, w := newFakeClient("")

	client.WriteTick(TickSample{Contexts: 1})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	if tags := tagsOf(w.points[0]); len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestWrites_DisconnectedAreDropped(t *testing.T) {
	client, w := newFakeClient("x")
	client.connected = false

	client.WriteTick(TickSample{Contexts: 1})
	client.WriteSessionEvent(SessionSample{ContextID: "c"})
	client.Flush()

	if len(w.points) != 0 || w.flushes != 0 {
		t.Errorf("points=%d flushes=%d, want 0/0", len(w.points), w.flushes)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSetOnError(t *testing.T) {
	client, _ := newFakeClient("")
	errs := make(chan error, 1)
	client.SetOnError(func(err error) { errs <- err })

	ch := make(chan error, 1)
	ch <- errors.New("write refused")
	close(ch)
	client.handleWriteErrors(ch)

	select {
	case err := <-errs:
		if err.Error() != "write refused" {
			t.Errorf("callback got %v", err)
		}
	default:
		t.Error("error callback not invoked")
	}
}
