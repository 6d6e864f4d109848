// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry tracing and graceful shutdown for taskapi.
//
// # Structured Logging
//
// Loggers wrap logrus and write JSON by default:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("task_id", id).Info("Task updated")
//
// NewLoggerFromConfig adds optional file output rotated by lumberjack.
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", reqID))
//	observability.FromContext(ctx).Warn("Slow query")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.RecordDenial("task:update")
//
// HTTP metrics are labelled with the matched route template rather than the
// raw path. A StatsCollector refreshes user and task gauges on a cron
// schedule:
//
//	collector, err := observability.NewStatsCollector(store, metrics, logger, "@every 1m")
//	collector.Start()
//	defer collector.Stop(ctx)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(opsRouter, checker)
//
// /health/live always answers 200. /health/ready answers 503 when the
// database is unreachable. A missing or failing Redis only degrades status.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "taskapi",
//		Insecure:    true,
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, 30*time.Second)
//	sm.AddServer(apiServer)
//	sm.RegisterShutdownFunc("store", func(context.Context) error { return store.Close() })
//	err := sm.Wait(ctx) // returns after ctx is cancelled and everything stopped
package observability
