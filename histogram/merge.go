package histogram

import (
	"fmt"
	"io"
	"math"

	"github.com/aclements/go-moremath/mathx"
)

// BinMerge is a live bin carrying the cost of merging it with the bin
// immediately to its right. The merge fields are meaningless for the
// rightmost bin, which has no handle.
type BinMerge struct {
	Bin

	MergeGranularity    Granularity
	MergeLikelihoodLoss float64

	handle    MergeKey
	hasHandle bool
}

// MergeKey identifies a merge candidate in the merge priority structure. The
// lower bound of the left bin never changes while the bin is live and makes
// the key unique among candidates with identical scores.
type MergeKey struct {
	Granularity    Granularity
	LikelihoodLoss float64
	Lower          float64
}

// CompareMergeKeys orders candidates cheapest first: granularity, then
// likelihood loss, then position. It matches the comparator signature of
// ordered containers keyed by MergeKey.
func CompareMergeKeys(a, b interface{}) int {
	left := a.(MergeKey)
	right := b.(MergeKey)
	if c := left.Granularity.Compare(right.Granularity); c != 0 {
		return c
	}
	switch {
	case left.LikelihoodLoss < right.LikelihoodLoss:
		return -1
	case left.LikelihoodLoss > right.LikelihoodLoss:
		return 1
	case left.Lower < right.Lower:
		return -1
	case left.Lower > right.Lower:
		return 1
	}
	return 0
}

func NewBinMerge(b Bin) *BinMerge {
	return &BinMerge{Bin: b}
}

// Reset turns bm into a singular bin for value, dropping any merge state.
func (bm *BinMerge) Reset(value float64) {
	*bm = BinMerge{Bin: Bin{Lower: value, Upper: value, Frequency: 1}}
}

// UpdateMergeCriteria recomputes the cost of merging bm with next. In
// saturated mode only the granularity matters and the loss is left at zero.
func (bm *BinMerge) UpdateMergeCriteria(next *BinMerge, grid Grid, saturated bool) {
	bm.MergeGranularity = MergeGranularity(bm.Bin, next.Bin, grid)
	bm.MergeLikelihoodLoss = 0
	if !saturated {
		bm.MergeLikelihoodLoss = LikelihoodLoss(bm.Bin, next.Bin)
	}
}

// MergeKey is the key bm would be stored under with its current criteria.
func (bm *BinMerge) MergeKey() MergeKey {
	return MergeKey{
		Granularity:    bm.MergeGranularity,
		LikelihoodLoss: bm.MergeLikelihoodLoss,
		Lower:          bm.Lower,
	}
}

// MergeHandle returns the key bm is currently registered under, if any.
func (bm *BinMerge) MergeHandle() (MergeKey, bool) {
	return bm.handle, bm.hasHandle
}

func (bm *BinMerge) SetMergeHandle(key MergeKey) {
	bm.handle = key
	bm.hasHandle = true
}

func (bm *BinMerge) ClearMergeHandle() {
	bm.handle = MergeKey{}
	bm.hasHandle = false
}

// CompareBinMerge orders two candidates with the merge priority order.
func (bm *BinMerge) CompareBinMerge(other *BinMerge) int {
	return CompareMergeKeys(bm.MergeKey(), other.MergeKey())
}

// CheckMergeCriteria verifies that the cached criteria match a fresh
// computation against next.
func (bm *BinMerge) CheckMergeCriteria(next *BinMerge, grid Grid, saturated bool) error {
	if bm.Upper >= next.Lower {
		return fmt.Errorf("bin %s overlaps its right neighbor %s", bm.Bin, next.Bin)
	}
	fresh := BinMerge{Bin: bm.Bin}
	fresh.UpdateMergeCriteria(next, grid, saturated)
	if fresh.MergeGranularity != bm.MergeGranularity {
		return fmt.Errorf("bin %s caches merge granularity %s, expected %s", bm.Bin, bm.MergeGranularity, fresh.MergeGranularity)
	}
	if fresh.MergeLikelihoodLoss != bm.MergeLikelihoodLoss {
		return fmt.Errorf("bin %s caches likelihood loss %g, expected %g", bm.Bin, bm.MergeLikelihoodLoss, fresh.MergeLikelihoodLoss)
	}
	return nil
}

// WriteMerge writes the granularity and likelihood loss columns.
func (bm *BinMerge) WriteMerge(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\t%s", bm.MergeGranularity, FormatValue(bm.MergeLikelihoodLoss))
	return err
}

// MergeGranularity is the granularity of the single grid cell that would hold
// left and right once merged.
func MergeGranularity(left, right Bin, grid Grid) Granularity {
	return grid.Granularity(left.Lower, right.Upper)
}

// LikelihoodLoss is the increase in description length caused by merging left
// and right: the multinomial cost of no longer knowing in which of the two
// bins each value fell, plus the cost of coarser positions within the merged
// bin. Singular bins have no length term.
func LikelihoodLoss(left, right Bin) float64 {
	total := left.Frequency + right.Frequency
	loss := -mathx.Lchoose(total, left.Frequency)
	loss += float64(total) * math.Log(right.Upper-left.Lower)
	if !left.IsSingular() {
		loss -= float64(left.Frequency) * math.Log(left.Length())
	}
	if !right.IsSingular() {
		loss -= float64(right.Frequency) * math.Log(right.Length())
	}
	if math.IsNaN(loss) {
		// overflowing lengths; such merges rank last among their granularity
		return math.Inf(1)
	}
	return loss
}
