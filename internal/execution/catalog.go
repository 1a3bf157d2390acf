package execution

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// Target is what a factory wires into a new context.
type Target struct {
	Type     TargetType
	Executor *playback.Executor
	Program  *playback.ProgramExecutor
}

// Factory builds a context for a target.
type Factory func(Target) (Context, error)

type catalogKey struct {
	target   TargetType
	features Features
}

// Catalog maps (target type, features) to a context factory. Lookups are
// exact matches.
type Catalog struct {
	mu        sync.RWMutex
	factories map[catalogKey]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[catalogKey]Factory)}
}

// DefaultCatalog returns a catalog with the built-in contexts:
//
//	sequence, {}              → SequenceContext
//	sequence, {Caching: true} → CachingSequenceContext
//	program,  {}              → ProgramContext
//	live,     {}              → LiveContext
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register(TargetSequence, Features{}, func(t Target) (Context, error) {
		if t.Executor == nil {
			return nil, fmt.Errorf("%w: sequence executor is nil", ErrInvalidArgument)
		}
		return NewSequenceContext(t.Executor), nil
	})
	c.Register(TargetSequence, Features{Caching: true}, func(t Target) (Context, error) {
		if t.Executor == nil {
			return nil, fmt.Errorf("%w: sequence executor is nil", ErrInvalidArgument)
		}
		return NewCachingSequenceContext(t.Executor), nil
	})
	c.Register(TargetProgram, Features{}, func(t Target) (Context, error) {
		if t.Program == nil {
			return nil, fmt.Errorf("%w: program executor is nil", ErrInvalidArgument)
		}
		return NewProgramContext(t.Program), nil
	})
	c.Register(TargetLive, Features{}, func(Target) (Context, error) {
		return NewLiveContext(), nil
	})
	return c
}

// Register adds or replaces the factory for target and features.
func (c *Catalog) Register(target TargetType, features Features, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[catalogKey{target: target, features: features}] = f
}

// Lookup returns the factory for target and features.
func (c *Catalog) Lookup(target TargetType, features Features) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[catalogKey{target: target, features: features}]
	return f, ok
}
