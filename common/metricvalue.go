package common

import (
	"fmt"
	"math"
	"strings"
)

// MetricValue is one observation of a metric as found in a record: a single
// value, a values/counts histogram, or a statistic set.
type MetricValue struct {
	Value  *float64
	Values []float64
	Counts []uint
	Min    *float64
	Max    *float64
	Sum    *float64
	Count  *uint
}

func NewSingleValue(v float64) MetricValue {
	return MetricValue{Value: &v}
}

// IsDistribution reports whether the observation carries individual values.
func (m MetricValue) IsDistribution() bool {
	return m.Value != nil || len(m.Values) > 0
}

// IsStatisticSet reports whether the observation only carries summary
// statistics.
func (m MetricValue) IsStatisticSet() bool {
	return m.Sum != nil && m.Count != nil && m.Min != nil && m.Max != nil
}

// Occurrences calls fn for every value with its multiplicity. Values without
// a matching count occur once.
func (m MetricValue) Occurrences(fn func(value float64, count uint)) {
	if m.Value != nil {
		fn(*m.Value, 1)
		return
	}
	for i, v := range m.Values {
		count := uint(1)
		if i < len(m.Counts) {
			count = m.Counts[i]
		}
		if count > 0 {
			fn(v, count)
		}
	}
}

// DropNonFinite returns m without its NaN and infinite values, and the
// number of occurrences removed.
func (m MetricValue) DropNonFinite() (MetricValue, uint) {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	if m.Value != nil {
		if finite(*m.Value) {
			return m, 0
		}
		return MetricValue{}, 1
	}
	if len(m.Values) == 0 {
		return m, 0
	}

	var dropped uint
	cleaned := m
	cleaned.Values = make([]float64, 0, len(m.Values))
	cleaned.Counts = make([]uint, 0, len(m.Values))
	m.Occurrences(func(v float64, count uint) {
		if !finite(v) {
			dropped += count
			return
		}
		cleaned.Values = append(cleaned.Values, v)
		cleaned.Counts = append(cleaned.Counts, count)
	})
	return cleaned, dropped
}

func (m MetricValue) String() string {
	var b strings.Builder
	b.Grow(256) // Pre-allocate space
	b.WriteString("{ ")

	addField := func(name string, value string) {
		if b.Len() > 2 { // Add comma if not the first field
			b.WriteString(", ")
		}
		b.WriteString(name + ": " + value)
	}
	optional := func(v *float64) string {
		if v == nil {
			return "nil"
		}
		return fmt.Sprintf("%v", *v)
	}

	addField("Value", optional(m.Value))
	addField("Values", fmt.Sprintf("%v", m.Values))
	addField("Counts", fmt.Sprintf("%v", m.Counts))
	addField("Min", optional(m.Min))
	addField("Max", optional(m.Max))
	addField("Sum", optional(m.Sum))
	if m.Count == nil {
		addField("Count", "nil")
	} else {
		addField("Count", fmt.Sprintf("%d", *m.Count))
	}

	b.WriteString(" }")
	return b.String()
}
