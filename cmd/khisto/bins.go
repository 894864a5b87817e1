package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/anthonydresser/fluent-bit-khisto/reader"
	"github.com/anthonydresser/fluent-bit-khisto/report"
	"github.com/anthonydresser/fluent-bit-khisto/streambin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type binsConfig struct {
	options.StreamOptions `mapstructure:",squash"`
	Merges                string `mapstructure:"merges"`
	Report                string `mapstructure:"report"`
	Format                string `mapstructure:"format"`
}

func addBinsFlags(fs *pflag.FlagSet) {
	fs.Int("max-bins", options.DefaultMaxBinNumber, "Maximum number of bins")
	fs.Bool("floating-point", false, "Align bins on the floating-point grid")
	fs.Bool("saturated", false, "Fuse adjacent bins up to the coarsest granularity")
	fs.Bool("mixed", false, "Combine equal-width and floating-point bins")
	fs.String("merges", "", "Write the pending bin merges to this file")
	fs.String("report", "", "Write a bin report to this file")
	fs.String("format", string(report.CSV), "Report format: csv, json or yaml")
}

func newBinsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bins [flags] VALUES BINS",
		Short: "Summarize a values file into at most max-bins bins",
		Long: `Reads VALUES, one number per line, and writes the bins of its streaming
summary to BINS as tab separated lower bound, upper bound and frequency.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg binsConfig
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runBins(cfg, args[0], args[1])
		},
	}
	addBinsFlags(cmd.Flags())
	return cmd
}

func runBins(cfg binsConfig, valuesPath, binsPath string) error {
	if err := cfg.StreamOptions.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	if samePath(valuesPath, binsPath) {
		return fmt.Errorf("values file and bins file must be different")
	}

	engine := streambin.New(cfg.StreamOptions)
	engine.InitializeStream()
	defer engine.FinalizeStream()

	n, err := reader.ReadFile(valuesPath, reader.DefaultOptions(), engine.AddStreamValue)
	if err != nil {
		return err
	}
	bins := engine.ExportStreamBins()
	log.Info().Printf("read %d values into %d bins", n, len(bins))

	if err := writeFile(binsPath, func(f *os.File) error { return histogram.WriteBins(f, bins) }); err != nil {
		return err
	}
	if cfg.Merges != "" {
		if err := writeFile(cfg.Merges, func(f *os.File) error { return engine.WriteStreamBinMerges(f) }); err != nil {
			return err
		}
	}
	if cfg.Report != "" {
		return writeFile(cfg.Report, func(f *os.File) error { return report.New(bins).Write(f, format) })
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
