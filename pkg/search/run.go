package search

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunOptions tweak Run.
type RunOptions struct {
	// ResponseFormat is passed through to the job, see JobOptions.
	ResponseFormat any

	// ReturnImmediately submits and returns without waiting. The caller
	// drives the returned job.
	ReturnImmediately bool
}

// Run submits q, waits for it and downloads the results. A search the
// server finishes with its error condition set yields a *SearchFailedError
// carrying the last server log message. The job is returned whenever it
// was created, including alongside errors, so callers can inspect its
// state and logs.
func Run[T any](ctx context.Context, c *Client, d Domain[T], q QueryBuilder, opts RunOptions) (*Job[T], error) {
	job, err := NewJob(c, d, q, JobOptions{ResponseFormat: opts.ResponseFormat})
	if err != nil {
		return nil, err
	}
	if err := job.Submit(ctx); err != nil {
		return job, err
	}
	if opts.ReturnImmediately {
		return job, nil
	}
	if err := job.Wait(ctx); err != nil {
		return job, err
	}

	switch job.State() {
	case Errored, Cancelled:
		summary := ""
		if st := job.LastStatus(); st != nil {
			summary = st.LastLog()
		}
		return job, &SearchFailedError{RequestID: job.ID(), Summary: summary}
	}

	if err := job.GetData(ctx); err != nil {
		return job, err
	}
	return job, nil
}

// Waiter is anything that blocks until a search reaches a terminal state.
// Every *Job satisfies it regardless of its record type.
type Waiter interface {
	Wait(ctx context.Context) error
}

// WaitAll waits on several jobs concurrently, at most limit at a time
// (limit <= 0 means unbounded). The first failure cancels the remaining
// waits and is returned.
func WaitAll(ctx context.Context, limit int, jobs ...Waiter) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, job := range jobs {
		g.Go(func() error {
			return job.Wait(ctx)
		})
	}
	return g.Wait()
}
