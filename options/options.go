package options

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxBinNumber      = 100
	DefaultAggregationPeriod = time.Minute
	DefaultNamespace         = "khisto"

	// CloudWatchMaxBinNumber is the largest distribution CloudWatch accepts
	// in one EMF metric value.
	CloudWatchMaxBinNumber = 100
)

// StreamOptions configures a streaming synopsis engine.
type StreamOptions struct {
	MaxBinNumber int `mapstructure:"max-bins"`
	// FloatingPointGrid aligns bins on mantissa and exponent boundaries
	// instead of powers of two. Ignored when Mixed is set.
	FloatingPointGrid bool `mapstructure:"floating-point"`
	SaturatedBins     bool `mapstructure:"saturated"`
	// Mixed runs an equal-width and a floating-point engine side by side.
	Mixed bool `mapstructure:"mixed"`
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{MaxBinNumber: DefaultMaxBinNumber}
}

func (o StreamOptions) Validate() error {
	if o.MaxBinNumber < 1 {
		return fmt.Errorf("max bin number must be at least 1, got %d", o.MaxBinNumber)
	}
	return nil
}

type PluginOptions struct {
	OutputPath         string
	AggregationPeriod  time.Duration
	LogGroupName       string
	LogStreamName      string
	CloudWatchEndpoint string
	Protocol           string
	// ValueKey restricts aggregation to one record field. Empty aggregates
	// every numeric field under its own name.
	ValueKey  string
	Namespace string
	// MetricsAddress serves the plugin counters when set.
	MetricsAddress string
	Stream         StreamOptions
}

func (o *PluginOptions) Validate() error {
	if o.OutputPath == "" && o.LogGroupName == "" {
		return errors.New("either output_path or log_group_name must be set")
	}
	if o.AggregationPeriod <= 0 {
		return fmt.Errorf("aggregation period must be positive, got %s", o.AggregationPeriod)
	}
	if o.Protocol != "" && o.Protocol != "http" && o.Protocol != "https" {
		return fmt.Errorf("unsupported protocol %q", o.Protocol)
	}
	if err := o.Stream.Validate(); err != nil {
		return err
	}
	if o.LogGroupName != "" && o.Stream.MaxBinNumber > CloudWatchMaxBinNumber {
		return fmt.Errorf("max bin number %d exceeds the %d values CloudWatch accepts per metric", o.Stream.MaxBinNumber, CloudWatchMaxBinNumber)
	}
	return nil
}
