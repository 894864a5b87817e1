package histogram

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	BinHeader   = "Lower\tUpper\tFrequency"
	MergeHeader = "Granularity\tLikelihoodLoss"
)

// WriteBins writes one bin per line in the tab separated interchange form,
// without header.
func WriteBins(w io.Writer, bins []Bin) error {
	bw := bufio.NewWriter(w)
	for _, b := range bins {
		if _, err := bw.WriteString(b.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadBins parses the output of WriteBins. Header lines starting with the
// BinHeader columns are skipped, as are empty lines.
func ReadBins(r io.Reader) ([]Bin, error) {
	bins := make([]Bin, 0)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || strings.HasPrefix(text, BinHeader) {
			continue
		}
		b, err := ParseBin(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bins = append(bins, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return bins, nil
}

// ParseBin parses "lower\tupper\tfrequency". Extra diagnostic columns are
// ignored.
func ParseBin(text string) (Bin, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 3 {
		return Bin{}, fmt.Errorf("expected lower, upper and frequency, got %q", text)
	}
	lower, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Bin{}, fmt.Errorf("invalid lower bound %q: %w", fields[0], err)
	}
	upper, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Bin{}, fmt.Errorf("invalid upper bound %q: %w", fields[1], err)
	}
	frequency, err := strconv.Atoi(fields[2])
	if err != nil {
		return Bin{}, fmt.Errorf("invalid frequency %q: %w", fields[2], err)
	}
	b := Bin{Lower: lower, Upper: upper, Frequency: frequency}
	if err := b.Check(); err != nil {
		return Bin{}, err
	}
	return b, nil
}
