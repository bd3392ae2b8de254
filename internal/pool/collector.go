package pool

import "github.com/prometheus/client_golang/prometheus"

// StatsSource yields stats for a set of pools.
type StatsSource interface {
	Snapshot() []Stats
}

// Collector exposes pool gauges to a Prometheus registry.
type Collector struct {
	source    StatsSource
	capacity  *prometheus.Desc
	free      *prometheus.Desc
	live      *prometheus.Desc
	destroyed *prometheus.Desc
}

// NewCollector builds a collector reading from source on every scrape.
func NewCollector(source StatsSource) *Collector {
	labels := []string{"pool", "policy"}
	return &Collector{
		source: source,
		capacity: prometheus.NewDesc("poolkit_pool_capacity",
			"Target pool size.", labels, nil),
		free: prometheus.NewDesc("poolkit_pool_free",
			"Deactivated instances ready for reuse.", labels, nil),
		live: prometheus.NewDesc("poolkit_pool_live",
			"Instances currently acquired by callers.", labels, nil),
		destroyed: prometheus.NewDesc("poolkit_pool_destroyed",
			"1 when the pool has been torn down.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.free
	ch <- c.live
	ch <- c.destroyed
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, s := range c.source.Snapshot() {
		policy := s.Policy.String()
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Name, policy)
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.Free), s.Name, policy)
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live), s.Name, policy)
		destroyed := 0.0
		if s.Destroyed {
			destroyed = 1
		}
		ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.GaugeValue, destroyed, s.Name, policy)
	}
}
