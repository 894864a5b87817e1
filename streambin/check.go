package streambin

import (
	"fmt"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
)

// CheckAllBins verifies that the live bins are valid, ordered with strict
// gaps, and that each cached merge matches its right neighbour.
func (s *StreamBining) CheckAllBins() error {
	s.requireInitialized("CheckAllBins")
	var (
		prev  *histogram.BinMerge
		total int
		err   error
	)
	s.liveBins(func(bm *histogram.BinMerge) {
		if err != nil {
			return
		}
		total += bm.Frequency
		if err = bm.Check(); err != nil {
			return
		}
		if prev != nil {
			if err = prev.CheckMergeCriteria(bm, s.grid, s.saturatedBins); err != nil {
				return
			}
			if _, ok := prev.MergeHandle(); !ok {
				err = fmt.Errorf("bin %s has no merge candidate", prev.Bin)
				return
			}
		}
		prev = bm
	})
	if err != nil {
		return err
	}
	if prev != nil {
		if _, ok := prev.MergeHandle(); ok {
			return fmt.Errorf("last bin %s has a merge candidate", prev.Bin)
		}
	}
	if s.maxBinNumber > 1 && total != s.global.Frequency {
		return fmt.Errorf("bins hold %d values, stream has %d", total, s.global.Frequency)
	}
	if n := s.GetBinNumber(); n > s.maxBinNumber {
		return fmt.Errorf("%d bins, expected at most %d", n, s.maxBinNumber)
	}
	return nil
}

// CheckAllBinMerges verifies that the merge candidates are in priority order
// and registered under their current criteria.
func (s *StreamBining) CheckAllBinMerges() error {
	s.requireInitialized("CheckAllBinMerges")
	if bins, merges := s.GetBinNumber(), s.GetBinMergeNumber(); bins > 0 && merges != bins-1 {
		return fmt.Errorf("%d merge candidates for %d bins", merges, bins)
	}
	var (
		prev *histogram.BinMerge
		err  error
	)
	s.liveMerges(func(bm *histogram.BinMerge) {
		if err != nil {
			return
		}
		key, ok := bm.MergeHandle()
		if !ok || key != bm.MergeKey() {
			err = fmt.Errorf("bin %s is registered under a stale merge key", bm.Bin)
			return
		}
		if prev != nil && prev.CompareBinMerge(bm) >= 0 {
			err = fmt.Errorf("merge of bin %s ranked before cheaper merge of bin %s", prev.Bin, bm.Bin)
			return
		}
		prev = bm
	})
	return err
}

// CheckStreamValue verifies the neighbourhood of the bin holding value, which
// must have been added to the stream.
func (s *StreamBining) CheckStreamValue(value float64) error {
	s.requireInitialized("CheckStreamValue")
	if !s.global.Contains(value) {
		return fmt.Errorf("value %s is outside the stream range", histogram.FormatValue(value))
	}
	if s.maxBinNumber == 1 {
		return nil
	}

	node := s.containingNode(value)
	if node == nil {
		return fmt.Errorf("no bin holds value %s", histogram.FormatValue(value))
	}
	current := node.Value.(*histogram.BinMerge)
	if err := current.Check(); err != nil {
		return err
	}
	prev, next := neighbours(node)
	if prev != nil {
		if err := s.checkRegisteredMerge(prev, current); err != nil {
			return err
		}
	}
	if next != nil {
		if err := s.checkRegisteredMerge(current, next); err != nil {
			return err
		}
	}

	if s.merges.Size() >= 2 {
		best := s.merges.Left()
		second := successor(best)
		if histogram.CompareMergeKeys(best.Key, second.Key) >= 0 {
			return fmt.Errorf("best merge %v is not below the next one %v", best.Key, second.Key)
		}
	}
	return nil
}

func (s *StreamBining) checkRegisteredMerge(left, right *histogram.BinMerge) error {
	if err := right.Check(); err != nil {
		return err
	}
	key, ok := left.MergeHandle()
	if !ok {
		return fmt.Errorf("bin %s has no merge candidate", left.Bin)
	}
	if registered, found := s.merges.Get(key); !found || registered != left {
		return fmt.Errorf("merge candidate of bin %s is not registered", left.Bin)
	}
	return left.CheckMergeCriteria(right, s.grid, s.saturatedBins)
}
