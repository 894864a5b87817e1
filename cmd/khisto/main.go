package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time.
var Version = "dev"

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("KHISTO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var configFile string
	root := &cobra.Command{
		Use:           "khisto",
		Short:         "Streaming histograms with a bounded number of bins",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			level, err := log.ParseLevel(v.GetString("log-level"))
			if err != nil {
				return err
			}
			log.Init("khisto", level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(newBinsCommand(v), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the khisto version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "khisto "+Version)
		},
	}
}

func main() {
	err := newRootCommand().Execute()
	_ = log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
