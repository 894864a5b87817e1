package metricaggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/anthonydresser/fluent-bit-khisto/testbed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statisticSet(sum, min, max float64, count uint) common.MetricValue {
	return common.MetricValue{Sum: &sum, Min: &min, Max: &max, Count: &count}
}

func TestInitMetricAggregator(t *testing.T) {
	opts := options.DefaultStreamOptions()

	agg, err := InitMetricAggregator(common.NewSingleValue(1), opts)
	require.NoError(t, err)
	assert.IsType(t, &synopsis{}, agg)
	agg.Close()

	agg, err = InitMetricAggregator(common.MetricValue{Values: []float64{1}, Counts: []uint{2}}, opts)
	require.NoError(t, err)
	assert.IsType(t, &synopsis{}, agg)
	agg.Close()

	agg, err = InitMetricAggregator(statisticSet(3, 1, 2, 2), opts)
	require.NoError(t, err)
	assert.IsType(t, &rateAggregator{}, agg)

	_, err = InitMetricAggregator(common.MetricValue{}, opts)
	assert.Error(t, err)
}

func TestSynopsisReduce(t *testing.T) {
	agg := newSynopsis(options.StreamOptions{MaxBinNumber: 3})
	defer agg.Close()
	assert.Nil(t, agg.Reduce())

	require.NoError(t, agg.Add(common.MetricValue{Values: []float64{1, 2, 5}, Counts: []uint{1, 1, 1}}))
	require.NoError(t, agg.Add(common.NewSingleValue(6)))

	got := agg.Reduce()
	require.NotNil(t, got)
	assert.Equal(t, []float64{1.5, 5, 6}, got.Values)
	assert.Equal(t, []uint{2, 1, 1}, got.Counts)
	assert.Equal(t, 1.0, got.Min)
	assert.Equal(t, 6.0, got.Max)
	assert.Equal(t, 14.0, got.Sum)
	assert.Equal(t, uint(4), got.Count)
}

func TestSynopsisCounts(t *testing.T) {
	agg := newSynopsis(options.DefaultStreamOptions())
	defer agg.Close()

	require.NoError(t, agg.Add(common.MetricValue{Values: []float64{7, 9}, Counts: []uint{3, 2}}))
	require.NoError(t, agg.Add(statisticSet(8, 4, 4, 2)))
	assert.Error(t, agg.Add(statisticSet(8, 3, 5, 2)))

	got := agg.Reduce()
	require.NotNil(t, got)
	assert.Equal(t, []float64{4, 7, 9}, got.Values)
	assert.Equal(t, []uint{2, 3, 2}, got.Counts)
	assert.Equal(t, uint(7), got.Count)
	assert.Equal(t, 47.0, got.Sum)
}

func TestSynopsisLargeCounts(t *testing.T) {
	for _, opts := range []options.StreamOptions{
		{MaxBinNumber: 4},
		{MaxBinNumber: 4, Mixed: true},
	} {
		agg := newSynopsis(opts)
		start := time.Now()
		require.NoError(t, agg.Add(common.MetricValue{Values: []float64{3, 5}, Counts: []uint{4_000_000_000, 2}}))
		require.NoError(t, agg.Add(statisticSet(1.5e10, 5, 5, 3_000_000_000)))
		assert.Less(t, time.Since(start), time.Second)

		got := agg.Reduce()
		require.NotNil(t, got)
		assert.Equal(t, []float64{3, 5}, got.Values)
		assert.Equal(t, []uint{4_000_000_000, 3_000_000_002}, got.Counts)
		assert.Equal(t, uint(7_000_000_002), got.Count)
		assert.Equal(t, 2.7000000010e10, got.Sum)
		agg.Close()
	}
}

func TestSynopsisBoundedValues(t *testing.T) {
	for _, opts := range []options.StreamOptions{
		{MaxBinNumber: 10},
		{MaxBinNumber: 10, FloatingPointGrid: true},
		{MaxBinNumber: 10, SaturatedBins: true},
		{MaxBinNumber: 10, Mixed: true},
	} {
		agg := newSynopsis(opts)
		values := testbed.Values(testbed.Generators["mixture"], 7, 2000)
		for _, v := range values {
			require.NoError(t, agg.Add(common.NewSingleValue(v)))
		}
		got := agg.Reduce()
		require.NotNil(t, got)
		assert.LessOrEqual(t, len(got.Values), 10)
		assert.Len(t, got.Counts, len(got.Values))

		var total uint
		for i, c := range got.Counts {
			total += c
			if i > 0 {
				assert.Less(t, got.Values[i-1], got.Values[i])
			}
		}
		assert.Equal(t, uint(len(values)), total)
		assert.Equal(t, got.Count, total)
		assert.GreaterOrEqual(t, got.Values[0], got.Min)
		assert.LessOrEqual(t, got.Values[len(got.Values)-1], got.Max)
		agg.Close()
	}
}

func TestRateAggregator(t *testing.T) {
	agg := newRateAggregator()
	assert.Nil(t, agg.Reduce())

	require.NoError(t, agg.Add(statisticSet(10, 2, 6, 3)))
	require.NoError(t, agg.Add(statisticSet(0, 100, -100, 0)))
	require.NoError(t, agg.Add(common.MetricValue{Values: []float64{-1, 8}, Counts: []uint{1, 2}}))
	assert.Error(t, agg.Add(common.MetricValue{}))

	assert.Equal(t, &MetricStats{Sum: 25, Min: -1, Max: 8, Count: 6}, agg.Reduce())

	require.NoError(t, agg.Add(common.MetricValue{Values: []float64{2}, Counts: []uint{4_000_000_000}}))
	assert.Equal(t, &MetricStats{Sum: 8_000_000_025, Min: -1, Max: 8, Count: 4_000_000_006}, agg.Reduce())
}

func BenchmarkSynopsis(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	agg := newSynopsis(options.DefaultStreamOptions())
	defer agg.Close()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		agg.add(r.NormFloat64(), 1)
	}
}
