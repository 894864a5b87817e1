package streambin

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/anthonydresser/fluent-bit-khisto/testbed"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStream(maxBinNumber int, floatingPoint, saturated bool) *StreamBining {
	s := NewStreamBiningWith(options.StreamOptions{
		MaxBinNumber:      maxBinNumber,
		FloatingPointGrid: floatingPoint,
		SaturatedBins:     saturated,
	})
	s.InitializeStream()
	return s
}

func addAll(e Engine, values ...float64) {
	for _, v := range values {
		e.AddStreamValue(v)
	}
}

func TestExportStreamBins(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		saturated bool
		values    []float64
		want      []histogram.Bin
	}{
		{
			name:   "empty",
			max:    3,
			values: nil,
			want:   []histogram.Bin{},
		},
		{
			name:   "single bin keeps global statistics",
			max:    1,
			values: []float64{3, 1, 4, 1, 5},
			want:   []histogram.Bin{{Lower: 1, Upper: 5, Frequency: 5}},
		},
		{
			name:   "duplicates",
			max:    3,
			values: []float64{7, 7, 7},
			want:   []histogram.Bin{{Lower: 7, Upper: 7, Frequency: 3}},
		},
		{
			name:   "equal width merges",
			max:    3,
			values: []float64{0, 1, 2, 3, 100},
			want: []histogram.Bin{
				{Lower: 0, Upper: 0, Frequency: 1},
				{Lower: 1, Upper: 3, Frequency: 3},
				{Lower: 100, Upper: 100, Frequency: 1},
			},
		},
		{
			name:   "ties broken by position",
			max:    3,
			values: []float64{1, 2, 5, 6},
			want: []histogram.Bin{
				{Lower: 1, Upper: 2, Frequency: 2},
				{Lower: 5, Upper: 5, Frequency: 1},
				{Lower: 6, Upper: 6, Frequency: 1},
			},
		},
		{
			name:      "saturated export fuses bins within the stream granularity",
			max:       3,
			saturated: true,
			values:    []float64{1, 2, 5, 6},
			want: []histogram.Bin{
				{Lower: 1, Upper: 2, Frequency: 2},
				{Lower: 5, Upper: 6, Frequency: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStream(tt.max, false, tt.saturated)
			addAll(s, tt.values...)
			if diff := cmp.Diff(tt.want, s.ExportStreamBins()); diff != "" {
				t.Errorf("ExportStreamBins() mismatch (-want +got):\n%s", diff)
			}
			assert.NoError(t, s.CheckAllBins())
			assert.NoError(t, s.CheckAllBinMerges())
		})
	}
}

func TestStreamStatistics(t *testing.T) {
	s := newStream(1, false, false)
	addAll(s, 3, 1, 4, 1, 5)
	assert.Equal(t, 1.0, s.GetStreamLowerValue())
	assert.Equal(t, 5.0, s.GetStreamUpperValue())
	assert.Equal(t, 5, s.GetStreamFrequency())
	assert.Zero(t, s.GetBinNumber())
	assert.Zero(t, s.GetBinMergeNumber())
	assert.NoError(t, s.CheckStreamValue(4))
	assert.Error(t, s.CheckStreamValue(6))
}

func TestStreamLifecycle(t *testing.T) {
	s := NewStreamBining()
	assert.Equal(t, options.DefaultMaxBinNumber, s.GetMaxBinNumber())
	assert.False(t, s.IsStreamInitialized())
	assert.Panics(t, func() { s.AddStreamValue(1) })
	assert.Panics(t, func() { s.SetMaxBinNumber(0) })

	s.SetMaxBinNumber(2)
	s.SetFloatingPointGrid(true)
	s.SetSaturatedBins(true)
	s.InitializeStream()
	assert.True(t, s.IsStreamInitialized())
	assert.True(t, s.GetFloatingPointGrid())
	assert.True(t, s.GetSaturatedBins())
	assert.Panics(t, func() { s.InitializeStream() })
	assert.Panics(t, func() { s.SetMaxBinNumber(3) })
	assert.Panics(t, func() { s.SetFloatingPointGrid(false) })
	assert.Panics(t, func() { s.SetSaturatedBins(false) })
	assert.Panics(t, func() { s.AddStreamValue(math.NaN()) })
	assert.Panics(t, func() { s.AddStreamValue(math.Inf(-1)) })

	addAll(s, 1, 2, 3)
	assert.Equal(t, 3, s.GetStreamFrequency())
	s.FinalizeStream()
	assert.False(t, s.IsStreamInitialized())
	assert.Zero(t, s.GetStreamFrequency())
	assert.Panics(t, func() { s.AddStreamValue(1) })
	assert.Panics(t, func() { s.ExportStreamBins() })

	s.InitializeStream()
	s.AddStreamValue(4)
	assert.Equal(t, []histogram.Bin{{Lower: 4, Upper: 4, Frequency: 1}}, s.ExportStreamBins())
}

func TestAddStreamValueFrequency(t *testing.T) {
	values := testbed.Values(testbed.Generators["mixture"], 5, 200)
	for _, floatingPoint := range []bool{false, true} {
		for _, saturated := range []bool{false, true} {
			t.Run(fmt.Sprintf("floatingPoint=%t/saturated=%t", floatingPoint, saturated), func(t *testing.T) {
				repeated := newStream(8, floatingPoint, saturated)
				weighted := newStream(8, floatingPoint, saturated)
				for i, v := range values {
					n := i%4 + 1
					for j := 0; j < n; j++ {
						repeated.AddStreamValue(v)
					}
					weighted.AddStreamValueFrequency(v, n)
				}
				require.NoError(t, weighted.CheckAllBins())
				require.NoError(t, weighted.CheckAllBinMerges())
				assert.Equal(t, repeated.GetStreamFrequency(), weighted.GetStreamFrequency())
				assert.Equal(t, repeated.GetStreamLowerValue(), weighted.GetStreamLowerValue())
				assert.Equal(t, repeated.GetStreamUpperValue(), weighted.GetStreamUpperValue())

				bins := weighted.ExportStreamBins()
				assert.Equal(t, weighted.GetStreamFrequency(), histogram.TotalFrequency(bins))
				assert.LessOrEqual(t, len(bins), 8)
				if !saturated {
					return
				}
				// merge granularities ignore frequencies
				if diff := cmp.Diff(repeated.ExportStreamBins(), bins); diff != "" {
					t.Errorf("ExportStreamBins() mismatch (-repeated +weighted):\n%s", diff)
				}
			})
		}
	}

	s := newStream(3, false, false)
	s.AddStreamValueFrequency(2, 4_000_000_000)
	s.AddStreamValueFrequency(7, 1)
	assert.Equal(t, 4_000_000_001, s.GetStreamFrequency())
	assert.Equal(t, []histogram.Bin{
		{Lower: 2, Upper: 2, Frequency: 4_000_000_000},
		{Lower: 7, Upper: 7, Frequency: 1},
	}, s.ExportStreamBins())
	assert.PanicsWithValue(t, "streambin: frequency 0, expected at least 1", func() { s.AddStreamValueFrequency(1, 0) })
	assert.Panics(t, func() { s.AddStreamValueFrequency(math.NaN(), 1) })
}

func TestComputeStreamBinsGranularity(t *testing.T) {
	s := newStream(3, false, false)
	addAll(s, 5, 6, 7)
	assert.Equal(t, histogram.Finest, s.ComputeStreamBinsGranularity())

	addAll(s, 0, 1, 2, 3, 100)
	assert.Equal(t, histogram.Granularity{Tier: histogram.MantissaTier, Level: 3}, s.ComputeStreamBinsGranularity())
}

func TestWriteStreamDiagnostics(t *testing.T) {
	s := newStream(3, false, false)
	addAll(s, 0, 1, 2, 3, 100)

	var bins bytes.Buffer
	require.NoError(t, s.WriteStreamBins(&bins))
	assert.Equal(t, "0\t0\t1\n1\t3\t3\n100\t100\t1\n", bins.String())

	var merges bytes.Buffer
	require.NoError(t, s.WriteStreamBinMerges(&merges))
	lines := strings.Split(strings.TrimSuffix(merges.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, histogram.MergeHeader+"\t"+histogram.BinHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "7\t"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], "\t1\t3\t3"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "impossible\t"), lines[2])

	var all bytes.Buffer
	require.NoError(t, s.WriteStreamBinsAndMerges(&all))
	lines = strings.Split(strings.TrimSuffix(all.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, histogram.BinHeader+"\t"+histogram.MergeHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0\t0\t1\timpossible\t"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1\t3\t3\t7\t"), lines[2])
	assert.Equal(t, "100\t100\t1\t", lines[3])
}

func TestWriteStreamBinsAndMergesSingleBin(t *testing.T) {
	s := newStream(1, false, false)
	addAll(s, 2, 8)
	var buf bytes.Buffer
	require.NoError(t, s.WriteStreamBinsAndMerges(&buf))
	assert.Equal(t, histogram.BinHeader+"\t"+histogram.MergeHeader+"\n2\t8\t2\n", buf.String())
}

// checkStream verifies the properties that hold after every call.
func checkStream(t *testing.T, s *StreamBining, added int, value float64) {
	t.Helper()
	require.NoError(t, s.CheckStreamValue(value))
	require.LessOrEqual(t, s.GetBinNumber(), s.GetMaxBinNumber())

	bins := s.ExportStreamBins()
	require.Equal(t, added, histogram.TotalFrequency(bins))
	require.LessOrEqual(t, len(bins), s.GetMaxBinNumber())
	for i, b := range bins {
		require.NoError(t, b.Check())
		if i > 0 {
			require.Less(t, bins[i-1].Upper, b.Lower, "bins %d and %d overlap", i-1, i)
		}
	}
}

func TestStreamProperties(t *testing.T) {
	streams := map[string][]float64{
		"normal":   testbed.Values(testbed.NormalCluster(100, 5), 1, 400),
		"pareto":   testbed.Values(testbed.Pareto(1, 1.5), 2, 400),
		"mixture":  testbed.Values(testbed.NearZeroAndLarge(0.3), 3, 400),
		"integers": testbed.Values(testbed.Integers(20), 4, 400),
	}
	for name, values := range streams {
		for _, max := range []int{1, 2, 3, 10} {
			for _, floatingPoint := range []bool{false, true} {
				for _, saturated := range []bool{false, true} {
					t.Run(fmt.Sprintf("%s/max=%d/fp=%t/saturated=%t", name, max, floatingPoint, saturated), func(t *testing.T) {
						s := newStream(max, floatingPoint, saturated)
						for i, v := range values {
							s.AddStreamValue(v)
							checkStream(t, s, i+1, v)
						}
						require.NoError(t, s.CheckAllBins())
						require.NoError(t, s.CheckAllBinMerges())
						if s.GetBinNumber() > 0 {
							assert.Equal(t, s.GetBinNumber()-1, s.GetBinMergeNumber())
						}
					})
				}
			}
		}
	}
}

func TestSaturatedGranularity(t *testing.T) {
	for _, floatingPoint := range []bool{false, true} {
		t.Run(fmt.Sprintf("fp=%t", floatingPoint), func(t *testing.T) {
			s := newStream(8, floatingPoint, true)
			addAll(s, testbed.Values(testbed.Pareto(1, 1.2), 5, 500)...)
			grid := histogram.GridFor(floatingPoint)
			granularity := s.ComputeStreamBinsGranularity()

			s.liveBins(func(bm *histogram.BinMerge) {
				if !bm.IsSingular() {
					assert.LessOrEqual(t, grid.Granularity(bm.Lower, bm.Upper).Compare(granularity), 0)
				}
			})
			for _, b := range s.ExportStreamBins() {
				if !b.IsSingular() {
					assert.LessOrEqual(t, grid.Granularity(b.Lower, b.Upper).Compare(granularity), 0, "bin %s", b)
				}
			}
		})
	}
}

func TestNew(t *testing.T) {
	e := New(options.StreamOptions{MaxBinNumber: 4, Mixed: true})
	_, ok := e.(*Mixed)
	assert.True(t, ok)

	e = New(options.StreamOptions{MaxBinNumber: 4, FloatingPointGrid: true})
	s, ok := e.(*StreamBining)
	require.True(t, ok)
	assert.True(t, s.GetFloatingPointGrid())

	assert.Panics(t, func() { New(options.StreamOptions{}) })
}
