package streambin

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/anthonydresser/fluent-bit-khisto/testbed"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBinNumber(t *testing.T) {
	tests := []struct {
		n, floatingPoint, equalWidth int
	}{
		{n: 1, floatingPoint: 1, equalWidth: 1},
		{n: 2, floatingPoint: 2, equalWidth: 1},
		{n: 3, floatingPoint: 2, equalWidth: 1},
		{n: 4, floatingPoint: 3, equalWidth: 1},
		{n: 5, floatingPoint: 3, equalWidth: 2},
		{n: 100, floatingPoint: 51, equalWidth: 49},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			floatingPoint, equalWidth := splitBinNumber(tt.n)
			assert.Equal(t, tt.floatingPoint, floatingPoint)
			assert.Equal(t, tt.equalWidth, equalWidth)
		})
	}
}

func TestRefine(t *testing.T) {
	// both summarize 0, 1, 2, 5, 9
	first := []histogram.Bin{{Lower: 0, Upper: 2, Frequency: 3}, {Lower: 5, Upper: 9, Frequency: 2}}
	second := []histogram.Bin{{Lower: 0, Upper: 1, Frequency: 2}, {Lower: 2, Upper: 5, Frequency: 2}, {Lower: 9, Upper: 9, Frequency: 1}}
	want := []histogram.Bin{
		{Lower: 0, Upper: 1, Frequency: 2},
		{Lower: 2, Upper: 2, Frequency: 1},
		{Lower: 5, Upper: 5, Frequency: 1},
		{Lower: 9, Upper: 9, Frequency: 1},
	}
	if diff := cmp.Diff(want, Refine(first, second)); diff != "" {
		t.Errorf("Refine() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, Refine(second, first)); diff != "" {
		t.Errorf("Refine() reversed mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, first, Refine(first, nil))
	assert.Equal(t, second, Refine(nil, second))
	assert.Empty(t, Refine(nil, nil))
	assert.Equal(t, first, Refine(first, first))
}

func TestMixed(t *testing.T) {
	m := NewMixedWith(options.StreamOptions{MaxBinNumber: 4})
	assert.Equal(t, 4, m.GetMaxBinNumber())
	m.InitializeStream()
	assert.True(t, m.IsStreamInitialized())
	assert.Equal(t, 3, m.FloatingPoint().GetMaxBinNumber())
	assert.Equal(t, 1, m.EqualWidth().GetMaxBinNumber())
	assert.True(t, m.FloatingPoint().GetFloatingPointGrid())
	assert.False(t, m.EqualWidth().GetFloatingPointGrid())
	assert.Panics(t, func() { m.SetMaxBinNumber(5) })
	assert.PanicsWithValue(t, "streambin: max bin number 0, expected at least 1", func() { NewMixed().SetMaxBinNumber(0) })

	values := testbed.Values(testbed.NearZeroAndLarge(0.4), 11, 300)
	for i, v := range values {
		m.AddStreamValue(v)
		bins := m.ExportStreamBins()
		require.Equal(t, i+1, histogram.TotalFrequency(bins))
		require.GreaterOrEqual(t, len(bins), 1)
		require.LessOrEqual(t, len(bins), 4)
		for j, b := range bins {
			require.NoError(t, b.Check())
			if j > 0 {
				require.Less(t, bins[j-1].Upper, b.Lower)
			}
		}
	}
	assert.Equal(t, len(values), m.GetStreamFrequency())
	assert.Equal(t, m.EqualWidth().GetStreamLowerValue(), m.GetStreamLowerValue())
	assert.Equal(t, m.EqualWidth().GetStreamUpperValue(), m.GetStreamUpperValue())

	var buf bytes.Buffer
	require.NoError(t, m.WriteStreamBinMerges(&buf))
	assert.Contains(t, buf.String(), histogram.MergeHeader)

	m.FinalizeStream()
	assert.False(t, m.IsStreamInitialized())
	m.SetMaxBinNumber(5)
	m.InitializeStream()
	assert.Equal(t, 3, m.FloatingPoint().GetMaxBinNumber())
	assert.Equal(t, 2, m.EqualWidth().GetMaxBinNumber())
}

func TestMixedBudgets(t *testing.T) {
	values := testbed.Values(testbed.Pareto(1, 1.1), 12, 200)
	for _, max := range []int{1, 2, 3, 7, 20} {
		for _, saturated := range []bool{false, true} {
			t.Run(fmt.Sprintf("max=%d/saturated=%t", max, saturated), func(t *testing.T) {
				m := NewMixedWith(options.StreamOptions{MaxBinNumber: max, SaturatedBins: saturated})
				m.InitializeStream()
				addAll(m, values...)
				bins := m.ExportStreamBins()
				assert.Equal(t, len(values), histogram.TotalFrequency(bins))
				assert.LessOrEqual(t, len(bins), max)
				assert.Equal(t, m.GetStreamLowerValue(), bins[0].Lower)
				assert.Equal(t, m.GetStreamUpperValue(), bins[len(bins)-1].Upper)
			})
		}
	}
}
