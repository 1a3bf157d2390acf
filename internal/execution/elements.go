package execution

import (
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// ElementSet is a set of output element IDs.
type ElementSet map[string]struct{}

// NewElementSet returns a set holding ids.
func NewElementSet(ids ...string) ElementSet {
	s := make(ElementSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts ids.
func (s ElementSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set.
func (s ElementSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge adds every member of other.
func (s ElementSet) Merge(other ElementSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s ElementSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// elementTracker turns the effects active at one instant into the set of
// affected elements for a tick. It remembers the previous tick's active
// targets so elements whose effects just ended are reported once more, and
// holds live effects until they expire.
//
// Not safe for concurrent use; contexts call it from Tick only.
type elementTracker struct {
	previous ElementSet
	live     []playback.Effect
}

// addLive queues live effects for the following updates.
func (tr *elementTracker) addLive(fx []playback.Effect) {
	tr.live = append(tr.live, fx...)
}

// update returns active ∪ live-active-at-t ∪ previously active targets and
// prunes expired live effects.
func (tr *elementTracker) update(t time.Duration, active ElementSet) ElementSet {
	kept := tr.live[:0]
	for _, fx := range tr.live {
		if fx.Active(t) {
			active.Add(fx.Targets...)
		}
		if t < fx.End() {
			kept = append(kept, fx)
		}
	}
	for i := len(kept); i < len(tr.live); i++ {
		tr.live[i] = playback.Effect{}
	}
	tr.live = kept

	affected := make(ElementSet, len(active)+len(tr.previous))
	affected.Merge(active)
	affected.Merge(tr.previous)
	tr.previous = active
	return affected
}

// dropLive forgets pending live effects. Previously active targets are kept
// so they are still reported once after a session change.
func (tr *elementTracker) dropLive() {
	tr.live = nil
}

// activeTargets scans effects for those active at t.
func activeTargets(effects []playback.Effect, t time.Duration) ElementSet {
	set := make(ElementSet)
	for _, fx := range effects {
		if fx.Active(t) {
			set.Add(fx.Targets...)
		}
	}
	return set
}
