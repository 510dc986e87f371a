/*
Package monitoring provides Prometheus metrics for the interceptor and its
bridge server.

# Metrics

- Bridge HTTP requests (count, latency) by route template
- Clicks by classification
- Download strategy outcomes (loader, fetch, navigate)
- Upload outcomes by source (click, change, drop, script) and files per request
- File inputs bound by enhancement passes
- Installed pages and host WebSocket traffic

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

Every recorder is a no-op on a nil *Metrics.
*/
package monitoring
