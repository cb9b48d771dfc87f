// Package prometheus exports dispatch metrics: event counters and histograms
// through MetricsExporter, and live per-context gauges through StatsCollector.
package prometheus
