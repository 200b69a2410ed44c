package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fleetforge/fleetserver/internal/fleet"
)

// Runner is one kind's controller as seen by the set. Controller[C]
// satisfies it for every C.
type Runner interface {
	Kind() fleet.Kind
	Run(ctx context.Context)
}

// Set runs one controller per object kind. It is assembled once at
// process start with explicit dependencies; there is no global registry.
type Set struct {
	runners []Runner
}

// NewSet creates an empty controller set.
func NewSet() *Set {
	return &Set{}
}

// Add registers a controller. Not safe to call after Run.
func (s *Set) Add(r Runner) *Set {
	s.runners = append(s.runners, r)
	return s
}

// Run starts every controller and blocks until ctx is cancelled and all
// controllers have stopped.
func (s *Set) Run(ctx context.Context) {
	slog.Info("starting controllers", "count", len(s.runners))

	var wg sync.WaitGroup
	for _, r := range s.runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(ctx)
		}()
	}
	wg.Wait()
	slog.Info("all controllers stopped")
}
