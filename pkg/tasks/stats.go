package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Counter counts tasks matching a filter
type Counter interface {
	CountTasks(ctx context.Context, filter Filter) (int64, error)
}

// ComputeStats runs each count independently over the same base filter.
// The counts run concurrently and the first error cancels the rest.
func ComputeStats(ctx context.Context, counter Counter, base Filter) (*Stats, error) {
	var stats Stats

	queries := []struct {
		filter Filter
		dst    *int64
	}{
		{base, &stats.Total},
		{base.WithStatus(StatusCompleted), &stats.Completed},
		{base.WithStatus(StatusPending), &stats.Pending},
		{base.WithStatus(StatusInProgress), &stats.InProgress},
		{base.WithPriority(PriorityLow), &stats.ByPriority.Low},
		{base.WithPriority(PriorityMedium), &stats.ByPriority.Medium},
		{base.WithPriority(PriorityHigh), &stats.ByPriority.High},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			n, err := counter.CountTasks(gctx, q.filter)
			if err != nil {
				return err
			}
			*q.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
