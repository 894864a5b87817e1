package histogram

import (
	"fmt"
	"math"
)

// Tier separates granularities that are never comparable by magnitude alone:
// any merge that stays inside one exponent bin of the floating-point grid is
// preferred to any merge that crosses exponent bins, whatever their levels.
type Tier int

const (
	MantissaTier Tier = iota
	ExponentTier
	ImpossibleTier
)

const (
	// spacing of the smallest subnormal
	minLevel = -1074
	// 2^1024 overflows a float64
	maxLevel = 1023
	// exponent of the central bins ]-2^e, 0] in the exponent hierarchy
	zeroExponent = -1076
	// above the level of any span of exponents on one side of exponent 0
	rootExponentLevel = 12
)

// Granularity is the resolution of the smallest grid cell able to hold an
// interval, as a (tier, level) pair compared lexicographically. Within the
// mantissa tier, level g means a cell of width 2^g.
type Granularity struct {
	Tier  Tier
	Level int
}

var (
	// Impossible is the granularity of intervals no grid cell can hold, such
	// as intervals straddling zero.
	Impossible = Granularity{Tier: ImpossibleTier}
	// Finest is below every granularity of a non-singular interval.
	Finest = Granularity{Tier: MantissaTier, Level: math.MinInt}
)

func (g Granularity) Compare(other Granularity) int {
	switch {
	case g.Tier < other.Tier:
		return -1
	case g.Tier > other.Tier:
		return 1
	case g.Level < other.Level:
		return -1
	case g.Level > other.Level:
		return 1
	}
	return 0
}

func (g Granularity) IsImpossible() bool {
	return g.Tier == ImpossibleTier
}

func (g Granularity) String() string {
	switch g.Tier {
	case ImpossibleTier:
		return "impossible"
	case ExponentTier:
		return fmt.Sprintf("e%d", g.Level)
	}
	if g.Level == math.MinInt {
		return "finest"
	}
	return fmt.Sprintf("%d", g.Level)
}

// Grid computes the smallest power-of-two aligned cell holding an interval.
// The set of grids is closed: EqualWidthGrid and FloatingPointGrid.
type Grid interface {
	Granularity(lower, upper float64) Granularity
	Name() string
	isGrid()
}

// EqualWidthGrid aligns cells ]k*2^g, (k+1)*2^g] on multiples of their
// width. Cells never straddle zero.
type EqualWidthGrid struct{}

func (EqualWidthGrid) isGrid() {}

func (EqualWidthGrid) Name() string { return "equal-width" }

func (EqualWidthGrid) Granularity(lower, upper float64) Granularity {
	level, ok := equalWidthLevel(lower, upper)
	if !ok {
		return Impossible
	}
	return Granularity{Tier: MantissaTier, Level: level}
}

// FloatingPointGrid splits the real line into exponent bins ]2^e, 2^(e+1)]
// (mirrored for negative values), each cut into equal-width mantissa cells.
type FloatingPointGrid struct{}

func (FloatingPointGrid) isGrid() {}

func (FloatingPointGrid) Name() string { return "floating-point" }

func (FloatingPointGrid) Granularity(lower, upper float64) Granularity {
	if lower <= 0 && 0 < upper {
		return Impossible
	}
	if lower == upper {
		mantissa, _ := Decompose(lower)
		return EqualWidthGrid{}.Granularity(mantissa, mantissa)
	}

	lowerMantissa, lowerExponent := Decompose(lower)
	if upper == 0 {
		// only the central bin ]-2^e, 0] reaches zero
		return exponentGranularity(lowerExponent, zeroExponent)
	}
	upperMantissa, upperExponent := Decompose(upper)
	if lowerExponent == upperExponent {
		return EqualWidthGrid{}.Granularity(lowerMantissa, upperMantissa)
	}
	return exponentGranularity(lowerExponent, upperExponent)
}

// GridFor returns the grid selected by the floatingPoint option.
func GridFor(floatingPoint bool) Grid {
	if floatingPoint {
		return FloatingPointGrid{}
	}
	return EqualWidthGrid{}
}

// Decompose returns the mantissa in ]1, 2] (or ]-2, -1]) and the exponent of
// value, so that value == mantissa * 2^exponent. Unlike math.Frexp the
// intervals are open on the left and closed on the right: 1 is 2 * 2^-1.
// Zero decomposes into (0, 0).
func Decompose(value float64) (float64, int) {
	mantissa, exponent := math.Frexp(value)
	if mantissa == 0 {
		return 0, 0
	}
	mantissa *= 2
	exponent--
	if mantissa == 1 {
		mantissa = 2
		exponent--
	}
	return mantissa, exponent
}

func equalWidthLevel(lower, upper float64) (int, bool) {
	if lower <= 0 && 0 < upper {
		return 0, false
	}

	var level int
	switch width := upper - lower; {
	case width > 0:
		level = int(math.Ceil(math.Log2(width))) - 1
	case lower == 0:
		return minLevel, true
	default:
		// a point: start at the spacing of float64 values around it
		level = math.Ilogb(lower) - 53
	}
	if level < minLevel {
		level = minLevel
	}

	for ; level <= maxLevel; level++ {
		width := math.Ldexp(1, level)
		base := (math.Ceil(upper/width) - 1) * width
		if base < lower && upper <= base+width {
			return level, true
		}
	}
	return 0, false
}

// exponentGranularity spans two distinct exponents with the equal-width
// grid, exponents shifted by one so that the exponent hierarchy is centered
// on exponent 0 the way the equal-width grid is centered on zero.
func exponentGranularity(first, second int) Granularity {
	low, high := float64(first+1), float64(second+1)
	if low > high {
		low, high = high, low
	}
	level, ok := equalWidthLevel(low, high)
	if !ok {
		// crossing 1 joins both halves of the hierarchy at its root
		level = rootExponentLevel
	}
	return Granularity{Tier: ExponentTier, Level: level}
}
