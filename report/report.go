// Package report renders an exported synopsis as a table of bins with their
// probabilities and densities.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case CSV, JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q, expected csv, json or yaml", s)
}

var header = []string{"LowerBound", "UpperBound", "Length", "Frequency", "Probability", "Density"}

type Row struct {
	LowerBound  float64 `json:"lowerBound" yaml:"lowerBound"`
	UpperBound  float64 `json:"upperBound" yaml:"upperBound"`
	Length      float64 `json:"length" yaml:"length"`
	Frequency   int     `json:"frequency" yaml:"frequency"`
	Probability float64 `json:"probability" yaml:"probability"`
	// Density is zero for singular bins.
	Density float64 `json:"density" yaml:"density"`
}

type Report struct {
	Frequency int   `json:"frequency" yaml:"frequency"`
	Bins      []Row `json:"bins" yaml:"bins"`
}

func New(bins []histogram.Bin) Report {
	total := histogram.TotalFrequency(bins)
	r := Report{Frequency: total, Bins: make([]Row, 0, len(bins))}
	for _, b := range bins {
		row := Row{
			LowerBound: b.Lower,
			UpperBound: b.Upper,
			Length:     b.Length(),
			Frequency:  b.Frequency,
		}
		if total > 0 {
			row.Probability = float64(b.Frequency) / float64(total)
		}
		if row.Length > 0 {
			row.Density = row.Probability / row.Length
		}
		r.Bins = append(r.Bins, row)
	}
	return r
}

func (r Report) Write(w io.Writer, format Format) error {
	switch format {
	case CSV:
		return r.writeCSV(w)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", format)
}

func (r Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Bins {
		record := []string{
			histogram.FormatValue(row.LowerBound),
			histogram.FormatValue(row.UpperBound),
			histogram.FormatValue(row.Length),
			strconv.Itoa(row.Frequency),
			histogram.FormatValue(row.Probability),
			histogram.FormatValue(row.Density),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
