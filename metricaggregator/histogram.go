package metricaggregator

import (
	"fmt"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/anthonydresser/fluent-bit-khisto/streambin"
)

// synopsis summarizes the values of a metric with a streaming bin engine, so
// memory stays bounded by the bin budget whatever the number of values. The
// engine keeps the count and bounds, only the sum is tracked here.
type synopsis struct {
	engine streambin.Engine
	sum    float64
}

func newSynopsis(opts options.StreamOptions) *synopsis {
	engine := streambin.New(opts)
	engine.InitializeStream()
	return &synopsis{engine: engine}
}

func (s *synopsis) Add(metric common.MetricValue) error {
	if metric.IsDistribution() {
		metric.Occurrences(s.add)
	} else if metric.IsStatisticSet() && *metric.Min == *metric.Max {
		if *metric.Count > 0 {
			s.add(*metric.Min, *metric.Count)
		}
	} else {
		return fmt.Errorf("invalid metric: %v", metric)
	}
	return nil
}

func (s *synopsis) add(value float64, count uint) {
	s.engine.AddStreamValueFrequency(value, int(count))
	s.sum += value * float64(count)
}

// Reduce reports one value per exported bin: the bin midpoint, or the bin
// value for singular bins.
func (s *synopsis) Reduce() *MetricStats {
	if s.engine.GetStreamFrequency() == 0 {
		return nil
	}
	bins := s.engine.ExportStreamBins()
	values := make([]float64, len(bins))
	counts := make([]uint, len(bins))
	for i, b := range bins {
		values[i] = midpoint(b)
		counts[i] = uint(b.Frequency)
	}
	return &MetricStats{
		Values: values,
		Counts: counts,
		Min:    s.engine.GetStreamLowerValue(),
		Max:    s.engine.GetStreamUpperValue(),
		Sum:    s.sum,
		Count:  uint(s.engine.GetStreamFrequency()),
	}
}

func midpoint(b histogram.Bin) float64 {
	if b.IsSingular() {
		return b.Lower
	}
	return b.Lower/2 + b.Upper/2
}

func (s *synopsis) Close() {
	if s.engine.IsStreamInitialized() {
		s.engine.FinalizeStream()
	}
}
