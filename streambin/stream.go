package streambin

import (
	"fmt"
	"math"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// StreamBining summarizes a stream of values into at most MaxBinNumber
// disjoint bins. Whenever a new value pushes the bin count over the limit,
// the pair of adjacent bins with the cheapest merge is fused.
//
// A StreamBining is not safe for concurrent use.
type StreamBining struct {
	maxBinNumber      int
	floatingPointGrid bool
	saturatedBins     bool

	grid        histogram.Grid
	initialized bool
	global      histogram.Bin

	// lower bound -> *histogram.BinMerge
	bins *redblacktree.Tree
	// histogram.MergeKey -> *histogram.BinMerge, cheapest first
	merges *redblacktree.Tree
	// storage recycled for the next new bin
	workingBin *histogram.BinMerge
}

func NewStreamBining() *StreamBining {
	return &StreamBining{maxBinNumber: options.DefaultMaxBinNumber}
}

// NewStreamBiningWith builds an engine configured from opts, ignoring Mixed.
func NewStreamBiningWith(opts options.StreamOptions) *StreamBining {
	s := NewStreamBining()
	s.SetMaxBinNumber(opts.MaxBinNumber)
	s.SetFloatingPointGrid(opts.FloatingPointGrid)
	s.SetSaturatedBins(opts.SaturatedBins)
	return s
}

func (s *StreamBining) SetMaxBinNumber(n int) {
	s.requireConfigurable("SetMaxBinNumber")
	if n < 1 {
		panic(fmt.Sprintf("streambin: max bin number %d, expected at least 1", n))
	}
	s.maxBinNumber = n
}

func (s *StreamBining) GetMaxBinNumber() int {
	return s.maxBinNumber
}

func (s *StreamBining) SetFloatingPointGrid(enabled bool) {
	s.requireConfigurable("SetFloatingPointGrid")
	s.floatingPointGrid = enabled
}

func (s *StreamBining) GetFloatingPointGrid() bool {
	return s.floatingPointGrid
}

// SetSaturatedBins selects merges on granularity only, and an export where
// adjacent bins are fused as long as they fit the stream granularity.
func (s *StreamBining) SetSaturatedBins(enabled bool) {
	s.requireConfigurable("SetSaturatedBins")
	s.saturatedBins = enabled
}

func (s *StreamBining) GetSaturatedBins() bool {
	return s.saturatedBins
}

func (s *StreamBining) requireConfigurable(op string) {
	if s.initialized {
		panic("streambin: " + op + " called on an initialized stream")
	}
}

// InitializeStream starts an empty summary. A finalized stream may be
// initialized again.
func (s *StreamBining) InitializeStream() {
	if s.initialized {
		panic("streambin: InitializeStream called on an initialized stream")
	}
	s.grid = histogram.GridFor(s.floatingPointGrid)
	s.global = emptyGlobalBin()
	s.bins = redblacktree.NewWith(utils.Float64Comparator)
	s.merges = redblacktree.NewWith(histogram.CompareMergeKeys)
	s.workingBin = &histogram.BinMerge{}
	s.initialized = true
}

func (s *StreamBining) IsStreamInitialized() bool {
	return s.initialized
}

// FinalizeStream drops the summary and resets the global statistics.
func (s *StreamBining) FinalizeStream() {
	s.requireInitialized("FinalizeStream")
	s.global = emptyGlobalBin()
	s.bins = nil
	s.merges = nil
	s.workingBin = nil
	s.initialized = false
}

func (s *StreamBining) requireInitialized(op string) {
	if !s.initialized {
		panic("streambin: " + op + " called on a stream that is not initialized")
	}
}

// AddStreamValue adds one finite value to the summary.
func (s *StreamBining) AddStreamValue(value float64) {
	s.addValue("AddStreamValue", value, 1)
}

// AddStreamValueFrequency adds frequency occurrences of value at the cost of
// a single insertion.
func (s *StreamBining) AddStreamValueFrequency(value float64, frequency int) {
	s.addValue("AddStreamValueFrequency", value, frequency)
}

func (s *StreamBining) addValue(op string, value float64, frequency int) {
	s.requireInitialized(op)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		panic(fmt.Sprintf("streambin: non-finite value %v", value))
	}
	if frequency < 1 {
		panic(fmt.Sprintf("streambin: frequency %d, expected at least 1", frequency))
	}

	s.global.Lower = math.Min(s.global.Lower, value)
	s.global.Upper = math.Max(s.global.Upper, value)
	s.global.Frequency += frequency
	if s.maxBinNumber == 1 {
		return
	}

	node := s.containingNode(value)
	isNew := node == nil
	var current *histogram.BinMerge
	if isNew {
		current = s.workingBin
		s.workingBin = nil
		current.Reset(value)
		current.Frequency = frequency
		s.bins.Put(value, current)
		node = lookup(s.bins, value)
	} else {
		current = node.Value.(*histogram.BinMerge)
		current.Frequency += frequency
	}
	prev, next := neighbours(node)

	switch {
	case isNew:
		if prev != nil && next != nil {
			s.removeMerge(prev)
		}
		if prev != nil {
			s.addMerge(prev, current)
		}
		if next != nil {
			s.addMerge(current, next)
		}
	case !s.saturatedBins:
		// granularities do not depend on frequencies, only the losses change
		if prev != nil {
			s.removeMerge(prev)
			s.addMerge(prev, current)
		}
		if next != nil {
			s.removeMerge(current)
			s.addMerge(current, next)
		}
	}

	if s.bins.Size() > s.maxBinNumber {
		s.mergeCheapest()
	}
	if s.workingBin == nil {
		s.workingBin = &histogram.BinMerge{}
	}
}

// mergeCheapest fuses the cheapest candidate with its right neighbour, which
// becomes the working bin.
func (s *StreamBining) mergeCheapest() {
	best := s.merges.Left().Value.(*histogram.BinMerge)
	node := lookup(s.bins, best.Lower)
	prev, _ := neighbours(node)
	nextNode := successor(node)
	next := nextNode.Value.(*histogram.BinMerge)
	var nextNext *histogram.BinMerge
	if n := successor(nextNode); n != nil {
		nextNext = n.Value.(*histogram.BinMerge)
	}

	if prev != nil {
		s.removeMerge(prev)
	}
	s.removeMerge(best)
	if nextNext != nil {
		s.removeMerge(next)
	}
	s.bins.Remove(next.Lower)

	best.Upper = next.Upper
	best.Frequency += next.Frequency

	if prev != nil {
		s.addMerge(prev, best)
	}
	if nextNext != nil {
		s.addMerge(best, nextNext)
	}
	s.workingBin = next
}

func (s *StreamBining) addMerge(left, right *histogram.BinMerge) {
	left.UpdateMergeCriteria(right, s.grid, s.saturatedBins)
	key := left.MergeKey()
	s.merges.Put(key, left)
	left.SetMergeHandle(key)
}

func (s *StreamBining) removeMerge(bm *histogram.BinMerge) {
	key, ok := bm.MergeHandle()
	if !ok {
		panic(fmt.Sprintf("streambin: bin %s has no merge candidate", bm.Bin))
	}
	s.merges.Remove(key)
	bm.ClearMergeHandle()
}

// containingNode returns the node of the live bin holding value, or nil.
func (s *StreamBining) containingNode(value float64) *redblacktree.Node {
	node, found := s.bins.Floor(value)
	if !found || node.Value.(*histogram.BinMerge).Upper < value {
		return nil
	}
	return node
}

func neighbours(node *redblacktree.Node) (prev, next *histogram.BinMerge) {
	if n := predecessor(node); n != nil {
		prev = n.Value.(*histogram.BinMerge)
	}
	if n := successor(node); n != nil {
		next = n.Value.(*histogram.BinMerge)
	}
	return prev, next
}

func (s *StreamBining) GetStreamLowerValue() float64 {
	return s.global.Lower
}

func (s *StreamBining) GetStreamUpperValue() float64 {
	return s.global.Upper
}

func (s *StreamBining) GetStreamFrequency() int {
	return s.global.Frequency
}

// GetBinNumber is the number of live bins, always zero when the stream keeps
// only its global statistics.
func (s *StreamBining) GetBinNumber() int {
	if s.bins == nil {
		return 0
	}
	return s.bins.Size()
}

func (s *StreamBining) GetBinMergeNumber() int {
	if s.merges == nil {
		return 0
	}
	return s.merges.Size()
}

// liveBins walks the live bins in ascending order.
func (s *StreamBining) liveBins(fn func(*histogram.BinMerge)) {
	it := s.bins.Iterator()
	for it.Next() {
		fn(it.Value().(*histogram.BinMerge))
	}
}

// liveMerges walks the merge candidates cheapest first.
func (s *StreamBining) liveMerges(fn func(*histogram.BinMerge)) {
	it := s.merges.Iterator()
	for it.Next() {
		fn(it.Value().(*histogram.BinMerge))
	}
}

// emptyGlobalBin starts with inverted bounds so that the first value sets
// both.
func emptyGlobalBin() histogram.Bin {
	return histogram.Bin{Lower: math.MaxFloat64, Upper: -math.MaxFloat64}
}
