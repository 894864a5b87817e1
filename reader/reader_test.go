package reader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(input string, opts Options) ([]float64, int64, error) {
	var values []float64
	n, err := Read(strings.NewReader(input), opts, func(v float64) {
		values = append(values, v)
	})
	return values, n, err
}

func TestRead(t *testing.T) {
	values, n, err := collect("1\n-2.5\n3,25\n 4e3 \r\n", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []float64{1, -2.5, 3.25, 4000}, values)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int64
		label  string
		values []float64
	}{
		{name: "empty field", input: "1\n\n2\n", line: 2, label: "empty field instead of value", values: []float64{1}},
		{name: "invalid value", input: "1\n2\nabc\n", line: 3, label: "invalid value <abc>", values: []float64{1, 2}},
		{name: "too many fields", input: "1\t2\n", line: 1, label: "too many fields in line"},
		{name: "semicolon fields", input: "5\n1;2\n", line: 2, label: "too many fields in line", values: []float64{5}},
		{name: "infinite", input: "inf\n", line: 1, label: "invalid value <inf> (not a finite number)"},
		{name: "nan", input: "1\nNaN\n", line: 2, label: "invalid value <NaN> (not a finite number)", values: []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _, err := collect(tt.input, DefaultOptions())
			var lineErr *LineError
			require.True(t, errors.As(err, &lineErr), "error %v", err)
			assert.Equal(t, tt.line, lineErr.Line)
			assert.Equal(t, tt.label, lineErr.Label)
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestReadLineTooLong(t *testing.T) {
	_, _, err := collect("1\n2\n"+strings.Repeat("9", 100)+"\n", Options{MaxLineLength: 16})
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, int64(3), lineErr.Line)
	assert.Equal(t, "line 3 : line too long", err.Error())
}

func TestReadMaxRecordNumber(t *testing.T) {
	values, n, err := collect("1\n2\n3\n4\n", Options{MaxRecordNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []float64{1, 2}, values)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.5\n2.5\n"), 0o644))

	var sum float64
	n, err := ReadFile(path, DefaultOptions(), func(v float64) { sum += v })
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 4.0, sum)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"), DefaultOptions(), func(float64) {})
	assert.Error(t, err)
}
