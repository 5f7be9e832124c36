package constants

// Registered service names, in start order.
const (
	MetricsServerServiceName  = "metrics_server"
	ProcessMetricsServiceName = "process_metrics"
	PublisherServiceName      = "publisher"
	HeartbeatServiceName      = "heartbeat"
	IngestionServiceName      = "ingestion"
	ProtocolServiceName       = "protocol"
)
