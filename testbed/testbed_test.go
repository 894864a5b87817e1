package testbed

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesAreDeterministic(t *testing.T) {
	for name, gen := range Generators {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Values(gen, 7, 50), Values(gen, 7, 50))
			assert.NotEqual(t, Values(gen, 7, 50), Values(gen, 8, 50))
		})
	}
}

func TestGeneratorRanges(t *testing.T) {
	for _, v := range Values(Pareto(2, 1.5), 1, 1000) {
		assert.GreaterOrEqual(t, v, 2.0)
	}
	for _, v := range Values(NearZeroAndLarge(0.5), 1, 1000) {
		small := v >= -1e-3 && v < 1e-3
		large := v >= 1e6 && v <= 2e6
		assert.True(t, small || large, "value %v", v)
	}
	for _, v := range Values(Integers(3), 1, 100) {
		assert.Contains(t, []float64{0, 1, 2}, v)
	}
}

func TestNewRecord(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	record := NewRecord(r, time.UnixMilli(1500))
	assert.Equal(t, int64(1500), record.AWS.Timestamp)
	names := record.AWS.MetricNames()
	assert.Len(t, names, len(metrics))
	for _, name := range names {
		assert.IsType(t, float64(0), record.OtherFields[name])
	}
	assert.Contains(t, services, record.OtherFields["service"])
	assert.Contains(t, environments, record.OtherFields["environment"])

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_aws":{"Timestamp":1500`)
}
