package emf

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/flush"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/anthonydresser/fluent-bit-khisto/metricaggregator"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"go.uber.org/multierr"
)

// EMFAggregator summarizes the metrics of the records it receives and writes
// one EMF event per dimension set every aggregation period.
type EMFAggregator struct {
	mu      sync.Mutex
	options *options.PluginOptions
	flusher flush.Flusher
	// dimension hash -> group
	groups    map[string]*metricGroup
	telemetry *Telemetry
	now       func() time.Time
	Task      *ScheduledTask
}

type metricGroup struct {
	aws        *common.AWSMetadata
	dimensions map[string]string
	metrics    map[string]metricaggregator.MetricAggregator
}

func NewEMFAggregator(opts *options.PluginOptions, flusher flush.Flusher, telemetry *Telemetry) (*EMFAggregator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if telemetry == nil {
		telemetry = NewTelemetry(nil)
	}
	if opts.Namespace == "" {
		opts.Namespace = options.DefaultNamespace
	}
	a := &EMFAggregator{
		options:   opts,
		flusher:   flusher,
		groups:    make(map[string]*metricGroup),
		telemetry: telemetry,
		now:       time.Now,
	}
	a.Task = NewScheduledTask(opts.AggregationPeriod, a.Flush)
	return a, nil
}

// AggregateRecord adds one decoded record. Records carrying _aws metadata
// are read as EMF, any other record as plain numeric fields.
func (a *EMFAggregator) AggregateRecord(record map[interface{}]interface{}, ts time.Time) error {
	var metric *EMFMetric
	var err error
	if lookupKey(record, "_aws") != nil {
		metric, err = EmfFromRecord(record)
	} else {
		metric, err = PlainFromRecord(record, a.options.ValueKey, a.options.Namespace, ts.UnixMilli())
	}
	if err != nil {
		return err
	}
	return a.AggregateMetric(metric)
}

func (a *EMFAggregator) AggregateMetric(emf *EMFMetric) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dimHash := createDimensionHash(emf.Dimensions)
	group, exists := a.groups[dimHash]
	if !exists {
		group = &metricGroup{
			aws:        &common.AWSMetadata{},
			dimensions: emf.Dimensions,
			metrics:    make(map[string]metricaggregator.MetricAggregator),
		}
		a.groups[dimHash] = group
	}
	group.aws.Merge(emf.AWS)

	var errs error
	for name, value := range emf.MetricData {
		cleaned, dropped := value.DropNonFinite()
		if dropped > 0 {
			a.telemetry.ValuesDropped.Add(float64(dropped))
			log.Debug().Printf("dropped %d non-finite values of %s", dropped, name)
		}
		if !cleaned.IsDistribution() && !cleaned.IsStatisticSet() {
			continue
		}

		agg, exists := group.metrics[name]
		if !exists {
			var err error
			agg, err = metricaggregator.InitMetricAggregator(cleaned, a.options.Stream)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("metric %s: %w", name, err))
				continue
			}
			group.metrics[name] = agg
		}
		if err := agg.Add(cleaned); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("metric %s: %w", name, err))
			continue
		}
		a.telemetry.ValuesAggregated.Add(float64(occurrences(cleaned)))
	}
	return errs
}

func occurrences(m common.MetricValue) uint {
	if !m.IsDistribution() {
		return *m.Count
	}
	var n uint
	m.Occurrences(func(_ float64, count uint) { n += count })
	return n
}

// Flush writes the current period and starts a new one. When the flusher
// fails the period is kept and written with the next one.
func (a *EMFAggregator) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := a.buildEvents()
	if len(events) == 0 {
		return nil
	}

	a.telemetry.Flushes.Inc()
	size, count, err := a.flusher.Flush(events)
	a.telemetry.EventsWritten.Add(float64(count))
	a.telemetry.BytesWritten.Add(float64(size))
	if err != nil {
		a.telemetry.FlushErrors.Inc()
		return fmt.Errorf("failed to flush %d events: %w", len(events), err)
	}
	log.Info().Printf("flushed %d events (%d bytes)", count, size)

	for _, group := range a.groups {
		for _, agg := range group.metrics {
			agg.Close()
		}
	}
	a.groups = make(map[string]*metricGroup)
	return nil
}

func (a *EMFAggregator) buildEvents() []common.EMFEvent {
	hashes := make([]string, 0, len(a.groups))
	for hash := range a.groups {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	events := make([]common.EMFEvent, 0, len(a.groups))
	for _, hash := range hashes {
		group := a.groups[hash]
		fields := make(map[string]interface{}, len(group.dimensions)+len(group.metrics))
		for k, v := range group.dimensions {
			fields[k] = v
		}
		for name, agg := range group.metrics {
			if stats := agg.Reduce(); stats != nil {
				fields[name] = stats
			}
		}

		aws := group.aws.Retain(func(name string) bool {
			_, isMetric := group.metrics[name]
			_, reduced := fields[name]
			return isMetric && reduced
		})
		if len(aws.CloudWatchMetrics) == 0 {
			continue
		}
		if aws.Timestamp == 0 {
			aws.Timestamp = a.now().UnixMilli()
		}
		events = append(events, common.EMFEvent{AWS: aws, OtherFields: fields})
	}
	return events
}

// Close stops the periodic flush, writes what is left and closes the
// flusher. It must follow Task.Start.
func (a *EMFAggregator) Close() error {
	return multierr.Append(a.Task.Stop(), a.flusher.Close())
}

// createDimensionHash is stable across map iteration orders.
func createDimensionHash(dimensions map[string]string) string {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, dimensions[k])
	}
	return b.String()
}
