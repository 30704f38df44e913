package organize

import (
	"context"
	"errors"
	"fmt"

	"linksort/internal/jobstate"
)

// ErrAlreadyRunning is returned when a job record already exists.
var ErrAlreadyRunning = errors.New("organize job already running")

// Guard grants the single active job slot. The slot is the job record
// itself, so exclusivity survives restarts.
type Guard struct {
	states *jobstate.Store
}

// NewGuard returns a guard over states.
func NewGuard(states *jobstate.Store) Guard {
	return Guard{states: states}
}

// TryStart persists st only if no job exists. A denial has no side effects.
func (g Guard) TryStart(ctx context.Context, st *jobstate.State) error {
	created, err := g.states.Create(ctx, st)
	if err != nil {
		return fmt.Errorf("acquire job guard: %w", err)
	}
	if !created {
		return ErrAlreadyRunning
	}
	return nil
}

// Release deletes the job record if it still belongs to jobID. It returns
// jobstate.ErrGone when the record was already removed or replaced.
func (g Guard) Release(ctx context.Context, jobID string) error {
	released, err := g.states.Release(ctx, jobID)
	if err != nil {
		return fmt.Errorf("release job guard: %w", err)
	}
	if !released {
		return fmt.Errorf("release job guard: %w: job %s", jobstate.ErrGone, jobID)
	}
	return nil
}
