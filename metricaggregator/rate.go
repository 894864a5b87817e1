package metricaggregator

import (
	"fmt"

	"github.com/aclements/go-moremath/stats"
	"github.com/anthonydresser/fluent-bit-khisto/common"
)

// rateAggregator keeps only summary statistics. It serves metrics reported
// as statistic sets, which carry no individual values to bin.
type rateAggregator struct {
	sum   float64
	max   float64
	min   float64
	count uint
}

func newRateAggregator() *rateAggregator {
	return &rateAggregator{}
}

func (r *rateAggregator) Add(metric common.MetricValue) error {
	if metric.IsStatisticSet() {
		if *metric.Count == 0 {
			return nil
		}
		r.merge(*metric.Sum, *metric.Min, *metric.Max, *metric.Count)
		return nil
	}
	if !metric.IsDistribution() {
		return fmt.Errorf("invalid metric: %v", metric)
	}
	// bounds sees each distinct value once, counts only weigh the sum
	var bounds stats.StreamStats
	var sum float64
	var count uint
	metric.Occurrences(func(v float64, c uint) {
		bounds.Add(v)
		sum += v * float64(c)
		count += c
	})
	if count > 0 {
		r.merge(sum, bounds.Min, bounds.Max, count)
	}
	return nil
}

func (r *rateAggregator) merge(sum, min, max float64, count uint) {
	if r.count == 0 || min < r.min {
		r.min = min
	}
	if r.count == 0 || max > r.max {
		r.max = max
	}
	r.sum += sum
	r.count += count
}

func (r *rateAggregator) Reduce() *MetricStats {
	if r.count == 0 {
		return nil
	}
	return &MetricStats{
		Sum:   r.sum,
		Min:   r.min,
		Max:   r.max,
		Count: r.count,
	}
}

func (r *rateAggregator) Close() {}
