package orchestration

import (
	"context"
	"fmt"
)

// closeWhenDone calls onDone once ctx is cancelled. Closing the returned
// channel releases the watcher without calling onDone.
func closeWhenDone(ctx context.Context, onDone func()) chan struct{} {
	release := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			onDone()
		case <-release:
		}
	}()
	return release
}

// runTask runs task on its own goroutine and hands the result to onDone.
// A panic inside task comes back as an error.
func runTask(ctx context.Context, name string, task func(context.Context) error, onDone func(error)) {
	go func() {
		onDone(guardTask(ctx, name, task))
	}()
}

func guardTask(ctx context.Context, name string, task func(context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s: recovered from panic: %v", name, recovered)
		}
	}()

	if err := task(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
