package emf

import "github.com/prometheus/client_golang/prometheus"

// Telemetry counts what the aggregator does with the records it receives.
type Telemetry struct {
	ValuesAggregated prometheus.Counter
	ValuesDropped    prometheus.Counter
	Flushes          prometheus.Counter
	FlushErrors      prometheus.Counter
	EventsWritten    prometheus.Counter
	BytesWritten     prometheus.Counter
}

// NewTelemetry creates the counters and registers them with reg when it is
// not nil.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "khisto",
			Name:      name,
			Help:      help,
		})
	}
	t := &Telemetry{
		ValuesAggregated: counter("values_aggregated_total", "Values added to a synopsis."),
		ValuesDropped:    counter("values_dropped_total", "Non-finite values skipped."),
		Flushes:          counter("flushes_total", "Aggregation periods flushed."),
		FlushErrors:      counter("flush_errors_total", "Flushes that failed to write."),
		EventsWritten:    counter("events_written_total", "EMF events written."),
		BytesWritten:     counter("bytes_written_total", "Bytes of EMF events written."),
	}
	if reg != nil {
		reg.MustRegister(t.ValuesAggregated, t.ValuesDropped, t.Flushes, t.FlushErrors, t.EventsWritten, t.BytesWritten)
	}
	return t
}
