// Package reader streams numeric values from a text file, one value per line.
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/anthonydresser/fluent-bit-khisto/log"
	"go.uber.org/multierr"
)

const (
	DefaultMaxLineLength   = 8 * 1024 * 1024
	DefaultMaxRecordNumber = math.MaxInt32
)

type Options struct {
	// MaxLineLength is the longest accepted line in bytes.
	MaxLineLength int
	// Values beyond MaxRecordNumber are ignored with a warning.
	MaxRecordNumber int64
}

func DefaultOptions() Options {
	return Options{MaxLineLength: DefaultMaxLineLength, MaxRecordNumber: DefaultMaxRecordNumber}
}

// LineError reports an invalid line with its 1-based number.
type LineError struct {
	Line  int64
	Label string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d : %s", e.Line, e.Label)
}

// Read parses r and hands every value to sink, stopping at the first invalid
// line. It returns the number of values read.
func Read(r io.Reader, opts Options, sink func(float64)) (int64, error) {
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = DefaultMaxLineLength
	}
	if opts.MaxRecordNumber <= 0 {
		opts.MaxRecordNumber = DefaultMaxRecordNumber
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, opts.MaxLineLength)), opts.MaxLineLength)
	var line int64
	for scanner.Scan() {
		line++
		if line > opts.MaxRecordNumber {
			log.Warn().Printf("line %d : total value number too large (%d), ignoring the remaining values\n", line, line)
			return line - 1, nil
		}
		value, err := ParseValue(scanner.Text())
		if err != nil {
			return line - 1, &LineError{Line: line, Label: err.Error()}
		}
		sink(value)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return line, &LineError{Line: line + 1, Label: "line too long"}
		}
		return line, fmt.Errorf("error while reading file: %w", err)
	}
	return line, nil
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, opts Options, sink func(float64)) (n int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open values file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	n, err = Read(f, opts, sink)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
	}
	return n, err
}

// ParseValue parses one line holding a single finite value. A decimal comma
// is accepted in place of the decimal point.
func ParseValue(text string) (float64, error) {
	field := strings.TrimSpace(strings.TrimSuffix(text, "\r"))
	if strings.ContainsAny(field, "\t;") {
		return 0, errors.New("too many fields in line")
	}
	if field == "" {
		return 0, errors.New("empty field instead of value")
	}
	value, err := strconv.ParseFloat(strings.Replace(field, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value <%s>", field)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid value <%s> (not a finite number)", field)
	}
	return value, nil
}
