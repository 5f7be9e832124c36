package observability

// Metric names exported by the ingestion pipeline.
const (
	MetricLinesFramed        = "ortho_lines_framed_total"
	MetricFramingErrors      = "ortho_framing_errors_total"
	MetricReadings           = "ortho_readings_total"
	MetricSummaries          = "ortho_summaries_total"
	MetricAttentionVerdicts  = "ortho_attention_verdicts_total"
	MetricUnrecognizedLines  = "ortho_unrecognized_lines_total"
	MetricTransportFaults    = "ortho_transport_faults_total"
	MetricSampleBufferLength = "ortho_sample_buffer_length"
	MetricLastBPM            = "ortho_last_bpm"
	MetricProcessCPUPercent  = "ortho_process_cpu_percent"
	MetricProcessRSSBytes    = "ortho_process_resident_bytes"
)

// Observer receives pipeline counters and gauges.
type Observer interface {
	IncCounter(name string, v float64)
	SetGauge(name string, v float64)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) IncCounter(string, float64) {}
func (Nop) SetGauge(string, float64)   {}
