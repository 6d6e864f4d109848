package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/taskapi/pkg/tasks"
	"github.com/robfig/cron/v3"
)

// DefaultCollectSchedule refreshes the business gauges once a minute
const DefaultCollectSchedule = "@every 1m"

// StatsSource is the read side the collector counts from
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountTasks(ctx context.Context, filter tasks.Filter) (int64, error)
}

// poolStatser is implemented by stores backed by database/sql
type poolStatser interface {
	Stats() sql.DBStats
}

// StatsCollector periodically copies user and task counts into Prometheus
// gauges on a cron schedule.
type StatsCollector struct {
	source   StatsSource
	metrics  *Metrics
	logger   *Logger
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

// NewStatsCollector validates schedule and prepares a stopped collector
func NewStatsCollector(source StatsSource, metrics *Metrics, logger *Logger, schedule string) (*StatsCollector, error) {
	if source == nil {
		return nil, fmt.Errorf("stats source is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}
	if schedule == "" {
		schedule = DefaultCollectSchedule
	}

	c := &StatsCollector{
		source:   source,
		metrics:  metrics,
		logger:   logger.WithField("component", "stats_collector"),
		schedule: schedule,
		timeout:  10 * time.Second,
		cron:     cron.New(),
	}

	if _, err := c.cron.AddFunc(schedule, c.run); err != nil {
		return nil, fmt.Errorf("invalid collect schedule %q: %w", schedule, err)
	}
	return c, nil
}

// Start runs one collection immediately and then follows the schedule
func (c *StatsCollector) Start() {
	c.run()
	c.cron.Start()
	c.logger.Infof("Stats collector started with schedule %s", c.schedule)
}

// Stop halts the schedule and waits for a running collection to finish
func (c *StatsCollector) Stop(ctx context.Context) error {
	stopped := c.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *StatsCollector) run() {
	defer RecoverPanic(c.logger, "stats collector")

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.Collect(ctx); err != nil {
		c.metrics.StatsCollections.WithLabelValues("failure").Inc()
		c.logger.WithError(err).Warn("Stats collection failed")
		return
	}
	c.metrics.StatsCollections.WithLabelValues("success").Inc()
}

// Collect refreshes every gauge once
func (c *StatsCollector) Collect(ctx context.Context) error {
	users, err := c.source.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	c.metrics.UsersTotal.Set(float64(users))

	total, err := c.source.CountTasks(ctx, tasks.Filter{})
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	c.metrics.TasksTotal.Set(float64(total))

	for _, status := range []string{tasks.StatusPending, tasks.StatusInProgress, tasks.StatusCompleted} {
		n, err := c.source.CountTasks(ctx, tasks.Filter{}.WithStatus(status))
		if err != nil {
			return fmt.Errorf("count %s tasks: %w", status, err)
		}
		c.metrics.TasksByStatus.WithLabelValues(status).Set(float64(n))
	}

	if ps, ok := c.source.(poolStatser); ok {
		c.metrics.ObserveDBStats(ps.Stats())
	}
	return nil
}
