package metricaggregator

import (
	"fmt"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/options"
)

// MetricAggregator folds the observations of one metric over an aggregation
// period.
type MetricAggregator interface {
	Add(val common.MetricValue) error
	// Reduce returns nil when nothing was added.
	Reduce() *MetricStats
	// Close releases the aggregator. It must not be used afterwards.
	Close()
}

type MetricStats struct {
	Values []float64 `json:"Values,omitempty"`
	Counts []uint    `json:"Counts,omitempty"`
	Min    float64   `json:"Min"`
	Max    float64   `json:"Max"`
	Sum    float64   `json:"Sum"`
	Count  uint      `json:"Count"`
}

func InitMetricAggregator(sample common.MetricValue, opts options.StreamOptions) (MetricAggregator, error) {
	// based on the sample we can predetermine what kind of aggregator we need
	if sample.IsDistribution() {
		return newSynopsis(opts), nil
	} else if sample.IsStatisticSet() {
		return newRateAggregator(), nil
	}
	return nil, fmt.Errorf("could not determine the right type of aggregator to use for sample %v", sample)
}
