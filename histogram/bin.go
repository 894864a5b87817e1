package histogram

import (
	"fmt"
	"math"
	"strconv"
)

// Bin is the convex hull of the stream values assigned to one cell of a
// synopsis, with the number of values it holds.
type Bin struct {
	Lower     float64 `json:"Lower" yaml:"lower"`
	Upper     float64 `json:"Upper" yaml:"upper"`
	Frequency int     `json:"Frequency" yaml:"frequency"`
}

// NewBin panics when lower > upper or frequency < 1: both are caller bugs.
func NewBin(lower, upper float64, frequency int) Bin {
	b := Bin{Lower: lower, Upper: upper, Frequency: frequency}
	if err := b.Check(); err != nil {
		panic(err)
	}
	return b
}

func (b Bin) IsSingular() bool {
	return b.Lower == b.Upper
}

func (b Bin) Length() float64 {
	return b.Upper - b.Lower
}

func (b Bin) Contains(value float64) bool {
	return b.Lower <= value && value <= b.Upper
}

// Compare orders bins by upper bound, which is a total order on a set of
// disjoint bins.
func (b Bin) Compare(other Bin) int {
	switch {
	case b.Upper < other.Upper:
		return -1
	case b.Upper > other.Upper:
		return 1
	}
	return 0
}

func (b Bin) Clone() Bin {
	return b
}

// Merge returns the hull of both bins holding the sum of their frequencies.
func (b Bin) Merge(other Bin) Bin {
	merged := b
	if other.Lower < merged.Lower {
		merged.Lower = other.Lower
	}
	if other.Upper > merged.Upper {
		merged.Upper = other.Upper
	}
	merged.Frequency += other.Frequency
	return merged
}

func (b Bin) Check() error {
	if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
		return fmt.Errorf("bin %s has a NaN bound", b)
	}
	if b.Lower > b.Upper {
		return fmt.Errorf("bin %s has lower bound above upper bound", b)
	}
	if b.Frequency < 1 {
		return fmt.Errorf("bin %s has frequency %d, expected at least 1", b, b.Frequency)
	}
	return nil
}

// String renders the tab separated interchange form lower, upper, frequency.
func (b Bin) String() string {
	return FormatValue(b.Lower) + "\t" + FormatValue(b.Upper) + "\t" + strconv.Itoa(b.Frequency)
}

// FormatValue prints the shortest representation that parses back to the
// same float64.
func FormatValue(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// TotalFrequency sums the frequencies of a bin list.
func TotalFrequency(bins []Bin) int {
	total := 0
	for _, b := range bins {
		total += b.Frequency
	}
	return total
}
