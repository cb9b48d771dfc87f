package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-dispatch/internal/concurrency"
)

// GroupSnapshotProvider provides current Group stats snapshots.
type GroupSnapshotProvider interface {
	Stats() concurrency.GroupStats
}

// StatsCollector reads Context snapshots at scrape time.
type StatsCollector struct {
	source GroupSnapshotProvider

	queueDepth     *prom.Desc
	outboundLoans  *prom.Desc
	inboundWorkers *prom.Desc
	parkedWorkers  *prom.Desc
	executedTotal  *prom.Desc
}

var _ prom.Collector = (*StatsCollector)(nil)

// NewStatsCollector creates and registers a collector over source.
func NewStatsCollector(namespace string, reg prom.Registerer, source GroupSnapshotProvider) (*StatsCollector, error) {
	if namespace == "" {
		namespace = "hioload"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	labels := []string{"context"}
	c := &StatsCollector{
		source:         source,
		queueDepth:     prom.NewDesc(prom.BuildFQName(namespace, "", "queue_depth"), "Current queue depth.", labels, nil),
		outboundLoans:  prom.NewDesc(prom.BuildFQName(namespace, "", "outbound_loans"), "Own workers currently lent out.", labels, nil),
		inboundWorkers: prom.NewDesc(prom.BuildFQName(namespace, "", "inbound_workers"), "Foreign workers draining this queue.", labels, nil),
		parkedWorkers:  prom.NewDesc(prom.BuildFQName(namespace, "", "parked_workers"), "Workers blocked on the wake signal.", labels, nil),
		executedTotal:  prom.NewDesc(prom.BuildFQName(namespace, "", "context_executed_total"), "Tasks from this queue executed by any worker.", labels, nil),
	}
	return registerCollector(reg, c)
}

func (c *StatsCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.queueDepth
	ch <- c.outboundLoans
	ch <- c.inboundWorkers
	ch <- c.parkedWorkers
	ch <- c.executedTotal
}

func (c *StatsCollector) Collect(ch chan<- prom.Metric) {
	for _, s := range c.source.Stats().Contexts {
		ch <- prom.MustNewConstMetric(c.queueDepth, prom.GaugeValue, float64(s.Pending), s.Name)
		ch <- prom.MustNewConstMetric(c.outboundLoans, prom.GaugeValue, float64(s.Outbound), s.Name)
		ch <- prom.MustNewConstMetric(c.inboundWorkers, prom.GaugeValue, float64(s.Inbound), s.Name)
		ch <- prom.MustNewConstMetric(c.parkedWorkers, prom.GaugeValue, float64(s.Parked), s.Name)
		ch <- prom.MustNewConstMetric(c.executedTotal, prom.CounterValue, float64(s.Executed), s.Name)
	}
}
