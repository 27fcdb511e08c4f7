package sched

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Job is a long-running background loop that returns when ctx ends.
type Job interface {
	Run(ctx context.Context) error
}

// Group starts background jobs together and stops them together.
type Group struct {
	jobs map[string]Job
	log  *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGroup(logger *zerolog.Logger) *Group {
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Group{jobs: map[string]Job{}, log: &l}
}

func (g *Group) Add(name string, j Job) {
	g.jobs[name] = j
}

// Start launches every job; calling it twice has no effect.
func (g *Group) Start(parent context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	for name, j := range g.jobs {
		g.wg.Add(1)
		go func(name string, j Job) {
			defer g.wg.Done()
			if err := j.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				g.log.Error().Err(err).Str("job", name).Msg("background job stopped")
			}
		}(name, j)
	}
}

// Stop cancels the jobs and waits for them to return.
func (g *Group) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	g.wg.Wait()
}
