package sweeper

import (
	"context"
)

// Sweeper is a long-running background loop. The relay requeue sweep and the
// anchor scheduler both implement it so the worker binaries can run and drain
// them uniformly.
//
//go:generate mockgen -source=sweeper.go -destination=../mocks/sweeper.go -package=mocks -mock_names=Sweeper=MockSweeper
type Sweeper interface {
	// Start runs the loop, blocking until the context is canceled or Stop
	// is called
	Start(ctx context.Context) error

	// Stop shuts the loop down, waiting for the in-flight cycle to finish
	// or ctx to expire
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs
	Name() string
}
