package streambin

import (
	"fmt"
	"io"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
)

// Mixed feeds every value to an equal-width and a floating-point engine and
// exports the common refinement of both summaries. The bin budget is shared
// between the two engines.
type Mixed struct {
	maxBinNumber  int
	saturatedBins bool

	equalWidth    *StreamBining
	floatingPoint *StreamBining
}

func NewMixed() *Mixed {
	equalWidth := NewStreamBining()
	floatingPoint := NewStreamBining()
	floatingPoint.SetFloatingPointGrid(true)
	return &Mixed{
		maxBinNumber:  options.DefaultMaxBinNumber,
		equalWidth:    equalWidth,
		floatingPoint: floatingPoint,
	}
}

func NewMixedWith(opts options.StreamOptions) *Mixed {
	m := NewMixed()
	m.SetMaxBinNumber(opts.MaxBinNumber)
	m.SetSaturatedBins(opts.SaturatedBins)
	return m
}

func (m *Mixed) SetMaxBinNumber(n int) {
	m.floatingPoint.requireConfigurable("SetMaxBinNumber")
	if n < 1 {
		panic(fmt.Sprintf("streambin: max bin number %d, expected at least 1", n))
	}
	m.maxBinNumber = n
}

func (m *Mixed) GetMaxBinNumber() int {
	return m.maxBinNumber
}

func (m *Mixed) SetSaturatedBins(enabled bool) {
	m.equalWidth.SetSaturatedBins(enabled)
	m.floatingPoint.SetSaturatedBins(enabled)
	m.saturatedBins = enabled
}

func (m *Mixed) GetSaturatedBins() bool {
	return m.saturatedBins
}

// splitBinNumber gives (n+2)/2 bins to the floating-point engine and the
// remainder, at least 1, to the equal-width engine.
func splitBinNumber(n int) (floatingPoint, equalWidth int) {
	floatingPoint = (n + 2) / 2
	equalWidth = n - floatingPoint
	if equalWidth < 1 {
		equalWidth = 1
	}
	return floatingPoint, equalWidth
}

func (m *Mixed) InitializeStream() {
	floatingPoint, equalWidth := splitBinNumber(m.maxBinNumber)
	m.floatingPoint.SetMaxBinNumber(floatingPoint)
	m.equalWidth.SetMaxBinNumber(equalWidth)
	m.floatingPoint.InitializeStream()
	m.equalWidth.InitializeStream()
}

func (m *Mixed) IsStreamInitialized() bool {
	return m.floatingPoint.IsStreamInitialized()
}

func (m *Mixed) AddStreamValue(value float64) {
	m.equalWidth.AddStreamValue(value)
	m.floatingPoint.AddStreamValue(value)
}

func (m *Mixed) AddStreamValueFrequency(value float64, frequency int) {
	m.equalWidth.AddStreamValueFrequency(value, frequency)
	m.floatingPoint.AddStreamValueFrequency(value, frequency)
}

func (m *Mixed) FinalizeStream() {
	m.equalWidth.FinalizeStream()
	m.floatingPoint.FinalizeStream()
}

func (m *Mixed) GetStreamLowerValue() float64 {
	return m.floatingPoint.GetStreamLowerValue()
}

func (m *Mixed) GetStreamUpperValue() float64 {
	return m.floatingPoint.GetStreamUpperValue()
}

func (m *Mixed) GetStreamFrequency() int {
	return m.floatingPoint.GetStreamFrequency()
}

// EqualWidth and FloatingPoint expose the underlying engines for diagnostics.
func (m *Mixed) EqualWidth() *StreamBining {
	return m.equalWidth
}

func (m *Mixed) FloatingPoint() *StreamBining {
	return m.floatingPoint
}

// ExportStreamBins returns the common refinement of both summaries.
func (m *Mixed) ExportStreamBins() []histogram.Bin {
	return Refine(m.equalWidth.ExportStreamBins(), m.floatingPoint.ExportStreamBins())
}

// WriteStreamBinMerges writes the merge candidates of the equal-width engine
// followed by those of the floating-point engine.
func (m *Mixed) WriteStreamBinMerges(w io.Writer) error {
	if err := m.equalWidth.WriteStreamBinMerges(w); err != nil {
		return err
	}
	return m.floatingPoint.WriteStreamBinMerges(w)
}

// Refine merges two summaries of the same values into their common
// refinement. Each output bin ends at the next upper bound of either side and
// holds the values the cutting side counts up to that bound that were not
// emitted yet. Bounds are always observed values.
func Refine(first, second []histogram.Bin) []histogram.Bin {
	if len(first) == 0 {
		return append([]histogram.Bin{}, second...)
	}
	if len(second) == 0 {
		return append([]histogram.Bin{}, first...)
	}

	refined := make([]histogram.Bin, 0, len(first)+len(second)-1)
	i, j := 0, 0
	firstCount, secondCount := first[0].Frequency, second[0].Frequency
	emitted := 0
	lower := min(first[0].Lower, second[0].Lower)
	for i < len(first) && j < len(second) {
		upper := min(first[i].Upper, second[j].Upper)
		count := firstCount
		if second[j].Upper < first[i].Upper {
			count = secondCount
		}
		refined = append(refined, histogram.Bin{Lower: lower, Upper: upper, Frequency: count - emitted})
		emitted = count

		advanceFirst := first[i].Upper == upper
		advanceSecond := second[j].Upper == upper
		next := upper
		if advanceFirst {
			if i++; i < len(first) {
				firstCount += first[i].Frequency
				next = first[i].Lower
			}
		}
		if advanceSecond {
			if j++; j < len(second) {
				secondCount += second[j].Frequency
				if !advanceFirst || second[j].Lower < next {
					next = second[j].Lower
				}
			}
		}
		lower = next
	}
	return refined
}
