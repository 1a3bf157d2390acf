package execution

import (
	"errors"
	"testing"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"start", ActionStart, false},
		{" Pause ", ActionPause, false},
		{"RESUME", ActionResume, false},
		{"stop", ActionStop, false},
		{"release", ActionRelease, false},
		{"rewind", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAction) {
					t.Errorf("ParseAction(%q) error = %v, want ErrUnknownAction", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAction(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestManager_Apply(t *testing.T) {
	fake := newFakeContext("a")
	fake.running.Store(false)
	m := newFakeManager(t, fake)

	steps := []struct {
		action Action
		check  func() bool
	}{
		{ActionStart, func() bool { return fake.IsRunning() }},
		{ActionPause, func() bool { return fake.pauses.Load() == 1 }},
		{ActionResume, func() bool { return fake.resumes.Load() == 1 }},
		{ActionStop, func() bool { return !fake.IsRunning() && fake.stops.Load() == 1 }},
	}
	for _, s := range steps {
		got, err := m.Apply("a", s.action)
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", s.action, err)
		}
		if got != Context(fake) {
			t.Errorf("Apply(%s) returned %v, want the fake", s.action, got)
		}
		if !s.check() {
			t.Errorf("Apply(%s) had no effect", s.action)
		}
	}

	if _, err := m.Apply("a", Action("rewind")); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Apply(rewind) error = %v, want ErrUnknownAction", err)
	}

	if _, err := m.Apply("a", ActionRelease); err != nil {
		t.Fatalf("Apply(release) error = %v", err)
	}
	if m.Count() != 0 || fake.closed.Load() != 1 {
		t.Errorf("release: count=%d closes=%d, want 0/1", m.Count(), fake.closed.Load())
	}

	if _, err := m.Apply("a", ActionStart); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Apply() on released context error = %v, want ErrContextNotFound", err)
	}
}
