package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromObs records pipeline activity in a dedicated Prometheus registry.
type PromObs struct {
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPromObs() *PromObs {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		registry: prometheus.NewRegistry(),
		counters: map[string]prometheus.Counter{
			MetricLinesFramed:       counter(MetricLinesFramed, "Lines framed from the device stream."),
			MetricFramingErrors:     counter(MetricFramingErrors, "Lines dropped for exceeding the maximum length."),
			MetricReadings:          counter(MetricReadings, "BPM readings received."),
			MetricSummaries:         counter(MetricSummaries, "Metrics summaries evaluated."),
			MetricAttentionVerdicts: counter(MetricAttentionVerdicts, "Summaries that produced an attention verdict."),
			MetricUnrecognizedLines: counter(MetricUnrecognizedLines, "Lines matching no protocol pattern."),
			MetricTransportFaults:   counter(MetricTransportFaults, "Sessions ended by a transport read error."),
		},
		gauges: map[string]prometheus.Gauge{
			MetricSampleBufferLength: gauge(MetricSampleBufferLength, "Readings currently held for plotting."),
			MetricLastBPM:            gauge(MetricLastBPM, "Most recent BPM reading."),
			MetricProcessCPUPercent:  gauge(MetricProcessCPUPercent, "CPU used by the monitor process, in percent."),
			MetricProcessRSSBytes:    gauge(MetricProcessRSSBytes, "Resident memory of the monitor process."),
		},
	}

	for _, c := range p.counters {
		p.registry.MustRegister(c)
	}
	for _, g := range p.gauges {
		p.registry.MustRegister(g)
	}
	return p
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PromObs) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

var _ Observer = (*PromObs)(nil)
