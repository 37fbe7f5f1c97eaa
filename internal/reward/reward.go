// Package reward names and resolves reward computations.
//
// The pool never evaluates a reward function. It stores a [Ref] per
// environment and hands it back to whoever asked; only external consumers
// (the learning agent, the CLI) resolve a Ref against a [Registry]. New
// computations enter the system exclusively through [Registry.Register],
// so generated reward code is never executed inside the orchestration core.
package reward

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Ref is an opaque token identifying a registered reward computation.
type Ref string

// Func scores a transition from the caller's point of view.
type Func func(obs []float64, action []float64) float64

var ErrUnknownRef = errors.New("reward: unknown reference")

// Registry maps refs to pre-registered computations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Ref]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[Ref]Func)}
}

func (r *Registry) Register(ref Ref, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[ref]; exists {
		return fmt.Errorf("reward: %q already registered", ref)
	}
	r.funcs[ref] = fn
	return nil
}

func (r *Registry) Resolve(ref Ref) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}
	return fn, nil
}

func (r *Registry) Names() []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Ref, 0, len(r.funcs))
	for ref := range r.funcs {
		names = append(names, ref)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Built-in references available in every default registry.
const (
	Survival Ref = "survival"
	Upright  Ref = "upright"
	Centered Ref = "centered"
)

// DefaultRegistry returns a registry pre-loaded with the built-in
// computations.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.funcs[Survival] = func(obs, action []float64) float64 {
		return 1.0
	}
	r.funcs[Upright] = func(obs, action []float64) float64 {
		if len(obs) >= 3 {
			return math.Cos(obs[2])
		}
		if len(obs) >= 1 {
			return math.Cos(obs[0])
		}
		return 0
	}
	r.funcs[Centered] = func(obs, action []float64) float64 {
		if len(obs) == 0 {
			return 0
		}
		return -math.Abs(obs[0])
	}
	return r
}
