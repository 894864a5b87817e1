package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToFloat64(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
		ok    bool
	}{
		{"float64", 1.5, 1.5, true},
		{"int", 3, 3, true},
		{"uint8", uint8(7), 7, true},
		{"json number", json.Number("2.25"), 2.25, true},
		{"string", " 4e2 ", 400, true},
		{"bytes", []byte("-1"), -1, true},
		{"text", "abc", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConvertToFloat64(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertToUint(t *testing.T) {
	got, ok := ConvertToUint(3.0)
	assert.True(t, ok)
	assert.Equal(t, uint(3), got)

	got, ok = ConvertToUint("12")
	assert.True(t, ok)
	assert.Equal(t, uint(12), got)

	_, ok = ConvertToUint(-2)
	assert.False(t, ok)
	_, ok = ConvertToUint("1.5")
	assert.False(t, ok)
}

func TestFindAndEvery(t *testing.T) {
	values := []int{1, 2, 3}
	assert.Equal(t, 1, Find(values, func(v int) bool { return v == 2 }))
	assert.Equal(t, -1, Find(values, func(v int) bool { return v == 5 }))
	assert.True(t, Every(values, func(v int) bool { return v > 0 }))
	assert.False(t, Every(values, func(v int) bool { return v > 1 }))
	assert.True(t, Every([]int{}, func(v int) bool { return false }))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "a", ToString("a"))
	assert.Equal(t, "b", ToString([]byte("b")))
	assert.Equal(t, "42", ToString(42))
}
