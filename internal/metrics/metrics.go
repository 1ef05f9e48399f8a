// Package metrics publishes per-cell benchmark summaries to a Prometheus
// Pushgateway so runs can be graphed over time. Publishing is best effort
// and never fails a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"

	"github.com/modebench/modebench/internal/stats"
)

// Publisher pushes one Pushgateway group per run, keyed by job and run ID.
type Publisher struct {
	pusher *push.Pusher

	median   *prometheus.GaugeVec
	stdev    *prometheus.GaugeVec
	samples  *prometheus.GaugeVec
	slowdown *prometheus.GaugeVec
}

// NewPublisher builds a Publisher targeting url. The run ID becomes a
// grouping label so successive runs do not overwrite each other.
func NewPublisher(url, job, runID string) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("pushgateway url is empty")
	}
	registry := prometheus.NewRegistry()
	p := &Publisher{
		median: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modebench_median_ms",
			Help: "Median wall time per scenario and variant.",
		}, []string{"scenario", "variant"}),
		stdev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modebench_stdev_ms",
			Help: "Population standard deviation per scenario and variant.",
		}, []string{"scenario", "variant"}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modebench_samples",
			Help: "Number of timed repetitions per scenario and variant.",
		}, []string{"scenario", "variant"}),
		slowdown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modebench_slowdown_pct",
			Help: "Median slowdown vs the baseline variant, percent.",
		}, []string{"scenario", "variant"}),
	}
	for _, c := range []prometheus.Collector{p.median, p.stdev, p.samples, p.slowdown} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	p.pusher = push.New(url, job).Gatherer(registry).Grouping("run_id", runID)
	return p, nil
}

// Publish records the summary table and slowdowns and pushes the batch.
func (p *Publisher) Publish(table stats.Table, slowdowns map[string]map[string]float64) error {
	for scenario, byVariant := range table {
		for vkey, summary := range byVariant {
			labels := prometheus.Labels{"scenario": scenario, "variant": vkey}
			p.median.With(labels).Set(summary.Median)
			p.stdev.With(labels).Set(summary.Stdev)
			p.samples.With(labels).Set(float64(len(summary.Samples)))
		}
	}
	for scenario, byVariant := range slowdowns {
		for vkey, pct := range byVariant {
			p.slowdown.With(prometheus.Labels{"scenario": scenario, "variant": vkey}).Set(pct)
		}
	}
	if err := p.pusher.Push(); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}

// PublishBestEffort logs and swallows publish failures.
func (p *Publisher) PublishBestEffort(table stats.Table, slowdowns map[string]map[string]float64) {
	if err := p.Publish(table, slowdowns); err != nil {
		log.WithError(err).Warn("metrics push failed")
	}
}
