package engine

import (
	"context"

	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/pkg/packagekit"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// QueryResult is the result for one file of QueryAll.
type QueryResult struct {
	Path    string                     `json:"path"`
	Details []packagekit.PackageDetail `json:"details,omitempty"`
	Err     error                      `json:"-"`
}

// QueryAll queries each file on its own connection, at most
// query.max_concurrent at a time. Results are in input order; a failure
// affects only its own entry.
func (e *Engine) QueryAll(ctx context.Context, paths []string) []QueryResult {
	results := make([]QueryResult, len(paths))
	limit := e.cfg.Query.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		results[i].Path = path
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Err = errors.Cancelled(err)
				return nil
			}
			defer sem.Release(1)

			results[i].Details, results[i].Err = e.Query(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Completion carries the result of a job started with Go.
type Completion[T any] struct {
	Value T
	Err   error
}

// Go runs job on its own goroutine and delivers the single result on a
// buffered channel, so the job never blocks on a caller that stopped
// listening.
func Go[T any](ctx context.Context, job func(context.Context) (T, error)) <-chan Completion[T] {
	done := make(chan Completion[T], 1)
	go func() {
		v, err := job(ctx)
		done <- Completion[T]{Value: v, Err: err}
	}()
	return done
}
