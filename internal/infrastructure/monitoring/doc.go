/*
Package monitoring provides metrics collection for the shell.

# Overview

This package implements Prometheus-based metrics for the compositor loop,
the process supervisor, memory pressure handling and the control API.
Every Metrics value owns the registerer it was built on, so several shells
(or tests) can coexist in one process.

# Features

- Control API request metrics (latency, status)
- Instance lifecycle metrics (starts by result, terminations by kind)
- Loop metrics (events dispatched, dropped, dispatch latency)
- Memory pressure level and eviction counts
- WebSocket connection and message metrics
- Uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "window_added")
	// ... dispatch ...
	timer.Stop()
*/
package monitoring
