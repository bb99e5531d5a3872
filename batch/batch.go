// Package batch runs several bot sessions, each an operation on its own
// Context, and sequences operations that share one Context.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/operation"
)

// ErrSharedContext is returned when two concurrent jobs drive the same Context.
var ErrSharedContext = errors.New("batch: jobs share a context")

// Job is one named session, e.g. one game account.
type Job struct {
	Name string
	Op   *operation.Operation
}

// Outcome is the result of one job.
type Outcome struct {
	Name   string
	RunID  string
	Path   []string
	Result operation.Result
}

// Option configures a batch run.
type Option func(*options)

type options struct {
	maxConcurrency int
	failFast       bool
}

// WithConcurrency sets the maximum number of jobs running at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithFailFast cancels the remaining jobs once one finishes unsuccessfully.
func WithFailFast() Option {
	return func(o *options) {
		o.failFast = true
	}
}

// Run executes jobs concurrently and returns their outcomes in input order.
// The error is non-nil when the jobs are misconfigured or, with
// WithFailFast, when a job did not succeed.
func Run(ctx context.Context, jobs []Job, opts ...Option) ([]Outcome, error) {
	o := &options{maxConcurrency: 10}
	for _, opt := range opts {
		opt(o)
	}

	seen := make(map[*operation.Context]string, len(jobs))
	for _, job := range jobs {
		if prev, ok := seen[job.Op.Context()]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrSharedContext, prev, job.Name)
		}
		seen[job.Op.Context()] = job.Name
	}

	outcomes := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			result := job.Op.Execute(gctx)
			outcomes[i] = Outcome{
				Name:   job.Name,
				RunID:  job.Op.RunID(),
				Path:   job.Op.Path(),
				Result: result,
			}
			if o.failFast && !result.Success {
				return fmt.Errorf("job %s: %w", job.Name, result.Err())
			}
			return nil
		})
	}

	err := g.Wait()
	return outcomes, err
}

// Sequence runs operations one after another, the way a scheduler runs the
// tasks of one account. It stops after the first aborted result, so the
// returned slice may be shorter than ops.
func Sequence(ctx context.Context, ops ...*operation.Operation) []operation.Result {
	results := make([]operation.Result, 0, len(ops))
	for _, op := range ops {
		r := op.Execute(ctx)
		results = append(results, r)
		if r.Aborted {
			break
		}
	}
	return results
}
