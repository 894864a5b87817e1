// Package testbed generates deterministic synthetic value streams used to
// exercise the synopsis engines and the Fluent Bit plugin.
package testbed

import (
	"math"
	"math/rand"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/common"
)

// Generator draws one value from r.
type Generator func(r *rand.Rand) float64

// NormalCluster draws from a normal distribution, a compact cluster when
// stddev is small relative to mean.
func NormalCluster(mean, stddev float64) Generator {
	return func(r *rand.Rand) float64 {
		return mean + stddev*r.NormFloat64()
	}
}

// Pareto draws from a heavy-tailed Pareto distribution with minimum scale.
func Pareto(scale, shape float64) Generator {
	return func(r *rand.Rand) float64 {
		return scale / math.Pow(1-r.Float64(), 1/shape)
	}
}

// NearZeroAndLarge mixes tiny values of both signs around zero with large
// positive values, stressing both grid strategies at once.
func NearZeroAndLarge(largeFraction float64) Generator {
	return func(r *rand.Rand) float64 {
		if r.Float64() < largeFraction {
			return 1e6 * (1 + r.Float64())
		}
		return 1e-3 * (2*r.Float64() - 1)
	}
}

// Integers draws uniform integers in [0, n), producing many duplicates.
func Integers(n int) Generator {
	return func(r *rand.Rand) float64 {
		return float64(r.Intn(n))
	}
}

// Values draws n values from gen with a fixed seed.
func Values(gen Generator, seed int64, n int) []float64 {
	r := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := range values {
		values[i] = gen(r)
	}
	return values
}

// Generators are the named streams accepted by cmd/testbed.
var Generators = map[string]Generator{
	"normal":   NormalCluster(100, 5),
	"pareto":   Pareto(1, 1.5),
	"mixture":  NearZeroAndLarge(0.3),
	"integers": Integers(1000),
}

const Namespace = "testbed"

var (
	services     = []string{"api", "web", "auth", "db"}
	environments = []string{"prod", "staging", "dev"}
	metrics      = []struct {
		definition common.MetricDefinition
		gen        Generator
	}{
		{common.MetricDefinition{Name: "latency", Unit: "Milliseconds"}, Pareto(2, 1.2)},
		{common.MetricDefinition{Name: "cpu_usage", Unit: "Percent"}, NormalCluster(40, 10)},
		{common.MetricDefinition{Name: "memory_usage", Unit: "Bytes"}, NormalCluster(512*1024*1024, 64*1024*1024)},
		{common.MetricDefinition{Name: "request_count", Unit: "Count"}, Integers(1000)},
	}
)

// NewRecord builds one synthetic EMF record with a value for every metric.
func NewRecord(r *rand.Rand, now time.Time) common.EMFEvent {
	def := common.ProjectionDefinition{
		Namespace:  Namespace,
		Dimensions: [][]string{{"environment", "service"}},
		Metrics:    make([]common.MetricDefinition, len(metrics)),
	}
	fields := map[string]interface{}{
		"service":     services[r.Intn(len(services))],
		"environment": environments[r.Intn(len(environments))],
	}
	for i, m := range metrics {
		def.Metrics[i] = m.definition
		fields[m.definition.Name] = m.gen(r)
	}
	return common.EMFEvent{
		AWS:         &common.AWSMetadata{Timestamp: now.UnixMilli(), CloudWatchMetrics: []common.ProjectionDefinition{def}},
		OtherFields: fields,
	}
}
