package main

/*
#include <stdlib.h>
#include <stdint.h>
#include "fluent-bit/flb_plugin.h"
*/
import (
	"C"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unsafe"

	"github.com/anthonydresser/fluent-bit-khisto/emf"
	"github.com/anthonydresser/fluent-bit-khisto/flush"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/anthonydresser/fluent-bit-khisto/options"
	"github.com/fluent/fluent-bit-go/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pluginContext struct {
	aggregator *emf.EMFAggregator
	metrics    *http.Server
}

//export FLBPluginRegister
func FLBPluginRegister(def unsafe.Pointer) int {
	log.Init("khisto", log.WarnLevel)
	return output.FLBPluginRegister(def, "khisto", "Streaming histogram aggregator")
}

//export FLBPluginInit
func FLBPluginInit(plugin unsafe.Pointer) int {
	log.Info().Println("Initializing")

	opts, err := readOptions(func(key string) string { return output.FLBPluginConfigKey(plugin, key) })
	if err != nil {
		log.Error().Printf("invalid configuration: %v\n", err)
		return output.FLB_ERROR
	}

	flusher, err := flush.InitFlusher(opts)
	if err != nil {
		log.Error().Printf("failed to create flusher: %v\n", err)
		return output.FLB_ERROR
	}

	registry := prometheus.NewRegistry()
	aggregator, err := emf.NewEMFAggregator(opts, flusher, emf.NewTelemetry(registry))
	if err != nil {
		log.Error().Printf("failed to create aggregator: %v\n", err)
		_ = flusher.Close()
		return output.FLB_ERROR
	}

	ctx := &pluginContext{aggregator: aggregator}
	if opts.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		ctx.metrics = &http.Server{Addr: opts.MetricsAddress, Handler: mux}
		go func() {
			if err := ctx.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Printf("metrics server stopped: %v\n", err)
			}
		}()
	}

	output.FLBPluginSetContext(plugin, ctx)
	aggregator.Task.Start()

	return output.FLB_OK
}

// readOptions maps the plugin configuration keys onto the plugin options.
func readOptions(key func(string) string) (*options.PluginOptions, error) {
	opts := &options.PluginOptions{
		OutputPath:         key("output_path"),
		LogGroupName:       key("log_group_name"),
		LogStreamName:      key("log_stream_name"),
		CloudWatchEndpoint: key("endpoint"),
		Protocol:           key("protocol"),
		ValueKey:           key("value_key"),
		Namespace:          key("namespace"),
		MetricsAddress:     key("metrics_address"),
		AggregationPeriod:  options.DefaultAggregationPeriod,
		Stream:             options.DefaultStreamOptions(),
	}

	if logLevel := key("log_level"); logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		log.SetLevel(level)
	}

	if period := key("aggregation_period"); period != "" {
		aggregationPeriod, err := time.ParseDuration(period)
		if err != nil {
			return nil, err
		}
		opts.AggregationPeriod = aggregationPeriod
	} else {
		log.Info().Println("AggregationPeriod not set, defaulting to 1m")
	}

	if maxBins := key("max_bins"); maxBins != "" {
		n, err := strconv.Atoi(maxBins)
		if err != nil {
			return nil, err
		}
		opts.Stream.MaxBinNumber = n
	}
	for name, target := range map[string]*bool{
		"floating_point": &opts.Stream.FloatingPointGrid,
		"saturated":      &opts.Stream.SaturatedBins,
		"mixed":          &opts.Stream.Mixed,
	} {
		if value := key(name); value != "" {
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return nil, err
			}
			*target = enabled
		}
	}

	return opts, opts.Validate()
}

//export FLBPluginFlushCtx
func FLBPluginFlushCtx(ctx, data unsafe.Pointer, length C.int, tag *C.char) int {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Printf("Recovered in FLBPluginFlush: %v\n", r)
		}
	}()
	plugin := output.FLBPluginGetContext(ctx).(*pluginContext)

	dec := output.NewDecoder(data, int(length))
	for {
		ret, ts, record := output.GetRecord(dec)
		if ret != 0 {
			break
		}
		if err := plugin.aggregator.AggregateRecord(record, recordTime(ts)); err != nil {
			log.Debug().Printf("skipping record: %v\n", err)
		}
	}

	return output.FLB_OK
}

func recordTime(ts interface{}) time.Time {
	switch t := ts.(type) {
	case output.FLBTime:
		return t.Time
	case uint64:
		return time.Unix(int64(t), 0)
	}
	return time.Now()
}

//export FLBPluginExitCtx
func FLBPluginExitCtx(ctx unsafe.Pointer) int {
	// perform a last flush before we are killed
	plugin := output.FLBPluginGetContext(ctx).(*pluginContext)
	if err := plugin.aggregator.Close(); err != nil {
		log.Error().Printf("final flush failed: %v\n", err)
	}
	if plugin.metrics != nil {
		_ = plugin.metrics.Close()
	}
	_ = log.Sync()
	return output.FLB_OK
}

func main() {
}
