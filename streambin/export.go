package streambin

import (
	"bufio"
	"io"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
)

// ExportStreamBins returns a copy of the summary, ordered by value. The
// frequencies always add up to GetStreamFrequency.
func (s *StreamBining) ExportStreamBins() []histogram.Bin {
	s.requireInitialized("ExportStreamBins")
	if s.saturatedBins {
		return s.exportSaturatedBins()
	}
	return s.exportStandardBins()
}

func (s *StreamBining) exportStandardBins() []histogram.Bin {
	if s.GetBinNumber() <= 1 {
		return s.globalBins()
	}
	bins := make([]histogram.Bin, 0, s.bins.Size())
	s.liveBins(func(bm *histogram.BinMerge) {
		bins = append(bins, bm.Bin.Clone())
	})
	return bins
}

// exportSaturatedBins fuses adjacent bins left to right as long as the fused
// bin is no coarser than the coarsest live bin.
func (s *StreamBining) exportSaturatedBins() []histogram.Bin {
	if s.GetBinNumber() <= 1 {
		return s.globalBins()
	}
	granularity := s.ComputeStreamBinsGranularity()

	bins := make([]histogram.Bin, 0)
	var saturated histogram.Bin
	first := true
	s.liveBins(func(bm *histogram.BinMerge) {
		if first {
			saturated = bm.Bin.Clone()
			first = false
			return
		}
		if s.grid.Granularity(saturated.Lower, bm.Upper).Compare(granularity) <= 0 {
			saturated.Upper = bm.Upper
			saturated.Frequency += bm.Frequency
			return
		}
		bins = append(bins, saturated)
		saturated = bm.Bin.Clone()
	})
	return append(bins, saturated)
}

func (s *StreamBining) globalBins() []histogram.Bin {
	if s.global.Frequency == 0 {
		return []histogram.Bin{}
	}
	return []histogram.Bin{s.global.Clone()}
}

// ComputeStreamBinsGranularity is the coarsest granularity of the non-singular
// live bins, or histogram.Finest when all of them are singular.
func (s *StreamBining) ComputeStreamBinsGranularity() histogram.Granularity {
	s.requireInitialized("ComputeStreamBinsGranularity")
	granularity := histogram.Finest
	s.liveBins(func(bm *histogram.BinMerge) {
		if bm.IsSingular() {
			return
		}
		if g := s.grid.Granularity(bm.Lower, bm.Upper); g.Compare(granularity) > 0 {
			granularity = g
		}
	})
	return granularity
}

// WriteStreamBins writes the exported bins, one per line, without header.
func (s *StreamBining) WriteStreamBins(w io.Writer) error {
	return histogram.WriteBins(w, s.ExportStreamBins())
}

// WriteStreamBinMerges writes the merge candidates cheapest first, each with
// its left bin.
func (s *StreamBining) WriteStreamBinMerges(w io.Writer) error {
	s.requireInitialized("WriteStreamBinMerges")
	bw := bufio.NewWriter(w)
	bw.WriteString(histogram.MergeHeader + "\t" + histogram.BinHeader + "\n")
	var err error
	s.liveMerges(func(bm *histogram.BinMerge) {
		if err != nil {
			return
		}
		if err = bm.WriteMerge(bw); err != nil {
			return
		}
		_, err = bw.WriteString("\t" + bm.Bin.String() + "\n")
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteStreamBinsAndMerges writes the live bins in order, each followed by its
// merge candidate when it has a right neighbour.
func (s *StreamBining) WriteStreamBinsAndMerges(w io.Writer) error {
	s.requireInitialized("WriteStreamBinsAndMerges")
	bw := bufio.NewWriter(w)
	bw.WriteString(histogram.BinHeader + "\t" + histogram.MergeHeader + "\n")
	if s.maxBinNumber == 1 {
		for _, b := range s.globalBins() {
			bw.WriteString(b.String() + "\n")
		}
		return bw.Flush()
	}

	var err error
	s.liveBins(func(bm *histogram.BinMerge) {
		if err != nil {
			return
		}
		if _, err = bw.WriteString(bm.Bin.String() + "\t"); err != nil {
			return
		}
		if _, ok := bm.MergeHandle(); ok {
			if err = bm.WriteMerge(bw); err != nil {
				return
			}
		}
		err = bw.WriteByte('\n')
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}
