// Package aggregate fans timetable fetches out over many stops and collects
// the results in request order.
//
// Two policies are offered. FailFast abandons the whole batch on the first
// error and discards completed successes; it is the default for bulk loads.
// BestEffort keeps every success and reports the failures alongside them.
package aggregate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rodonguyen/FavStop/internal/translink"
)

// Fetcher fetches the timetable for one stop
type Fetcher interface {
	FetchTimetable(ctx context.Context, stopID string) (*translink.StopTimetable, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, stopID string) (*translink.StopTimetable, error)

// FetchTimetable calls f
func (f FetcherFunc) FetchTimetable(ctx context.Context, stopID string) (*translink.StopTimetable, error) {
	return f(ctx, stopID)
}

type options struct {
	limit int
}

// Option tunes a batch
type Option func(*options)

// WithLimit caps the number of in-flight fetches. n <= 0 means unbounded.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// StopError is a failed fetch within a batch
type StopError struct {
	StopID string
	Err    error
}

func (e StopError) Error() string {
	return fmt.Sprintf("stop %s: %v", e.StopID, e.Err)
}

func (e StopError) Unwrap() error {
	return e.Err
}

// BatchError lists every failed fetch of a BestEffort batch, in request order
type BatchError struct {
	Failures []StopError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the individual fetch errors to errors.Is/As
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// FailFast fetches every stop concurrently. The first failure cancels the
// remaining fetches and is returned unmodified; successes completed before
// it are discarded. Duplicate IDs are fetched once.
func FailFast(ctx context.Context, f Fetcher, stopIDs []string, opts ...Option) ([]translink.StopTimetable, error) {
	ids := dedupe(stopIDs)
	results := make([]*translink.StopTimetable, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if o := collect(opts); o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for i, id := range ids {
		g.Go(func() error {
			timetable, err := f.FetchTimetable(gctx, id)
			if err != nil {
				return err
			}
			results[i] = timetable
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return flatten(results), nil
}

// BestEffort fetches every stop concurrently and keeps all successes.
// If any fetch failed the returned error is a *BatchError; the successes are
// returned regardless.
func BestEffort(ctx context.Context, f Fetcher, stopIDs []string, opts ...Option) ([]translink.StopTimetable, error) {
	ids := dedupe(stopIDs)
	results := make([]*translink.StopTimetable, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	if o := collect(opts); o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for i, id := range ids {
		g.Go(func() error {
			results[i], errs[i] = f.FetchTimetable(ctx, id)
			return nil
		})
	}
	g.Wait()

	var batch BatchError
	for i, err := range errs {
		if err != nil {
			batch.Failures = append(batch.Failures, StopError{StopID: ids[i], Err: err})
		}
	}

	out := flatten(results)
	if len(batch.Failures) > 0 {
		return out, &batch
	}
	return out, nil
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func flatten(results []*translink.StopTimetable) []translink.StopTimetable {
	out := make([]translink.StopTimetable, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
