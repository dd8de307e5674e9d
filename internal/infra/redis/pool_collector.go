package redis

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exports go-redis connection pool statistics at scrape time.
type PoolCollector struct {
	client *Client

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
	stale    *prometheus.Desc
}

// NewPoolCollector describes the pool of c under the pgw_redis_pool prefix.
func NewPoolCollector(c *Client) *PoolCollector {
	name := func(metric string) string {
		return prometheus.BuildFQName("pgw", "redis_pool", metric)
	}
	return &PoolCollector{
		client:   c,
		hits:     prometheus.NewDesc(name("hits_total"), "Times a free connection was found in the pool.", nil, nil),
		misses:   prometheus.NewDesc(name("misses_total"), "Times a free connection was not found in the pool.", nil, nil),
		timeouts: prometheus.NewDesc(name("timeouts_total"), "Times a wait for a connection timed out.", nil, nil),
		total:    prometheus.NewDesc(name("connections"), "Connections currently held by the pool.", nil, nil),
		idle:     prometheus.NewDesc(name("idle_connections"), "Idle connections in the pool.", nil, nil),
		stale:    prometheus.NewDesc(name("stale_connections_total"), "Stale connections removed from the pool.", nil, nil),
	}
}

func (p *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.hits
	ch <- p.misses
	ch <- p.timeouts
	ch <- p.total
	ch <- p.idle
	ch <- p.stale
}

func (p *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := p.client.Client().PoolStats()
	ch <- prometheus.MustNewConstMetric(p.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(p.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(p.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(p.total, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(p.idle, prometheus.GaugeValue, float64(stats.IdleConns))
	ch <- prometheus.MustNewConstMetric(p.stale, prometheus.CounterValue, float64(stats.StaleConns))
}
