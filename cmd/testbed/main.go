package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/histogram"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/anthonydresser/fluent-bit-khisto/testbed"
)

func main() {
	host := flag.String("host", "fluent-bit", "Host to connect to")
	port := flag.Int("port", 5170, "Port to send data to")
	recordsPerSecond := flag.Int("rps", 100, "Records per second to generate")
	maxRetries := flag.Int("retries", 30, "Maximum number of connection retries")
	retryInterval := flag.Duration("retry-interval", 2*time.Second, "Time between retries")
	valuesFile := flag.String("values", "", "Write a values file instead of sending records")
	generator := flag.String("generator", "mixture", "Value generator for -values: normal, pareto, mixture or integers")
	count := flag.Int("count", 100000, "Number of values written with -values")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	log.Init("testbed", log.InfoLevel)
	defer log.Sync()

	if *valuesFile != "" {
		if err := writeValues(*valuesFile, *generator, *seed, *count); err != nil {
			log.Error().Printf("%v", err)
			os.Exit(1)
		}
		return
	}

	// Override host from environment if provided
	if envHost := os.Getenv("FLUENT_HOST"); envHost != "" {
		*host = envHost
	}
	address := fmt.Sprintf("%s:%d", *host, *port)
	if err := sendRecords(address, *recordsPerSecond, *maxRetries, *retryInterval, *seed); err != nil {
		log.Error().Printf("%v", err)
		os.Exit(1)
	}
}

func writeValues(path, generator string, seed int64, count int) error {
	gen, ok := testbed.Generators[generator]
	if !ok {
		return fmt.Errorf("unknown generator %q", generator)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range testbed.Values(gen, seed, count) {
		fmt.Fprintln(w, histogram.FormatValue(v))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Info().Printf("wrote %d %s values to %s", count, generator, path)
	return f.Close()
}

func dial(address string, maxRetries int, retryInterval time.Duration) (net.Conn, error) {
	log.Info().Printf("Attempting to connect to %s", address)
	var err error
	for i := 0; i < maxRetries; i++ {
		var conn net.Conn
		if conn, err = net.Dial("tcp", address); err == nil {
			log.Info().Printf("Successfully connected to %s", address)
			return conn, nil
		}
		log.Warn().Printf("Connection attempt %d failed: %v. Retrying in %v...", i+1, err, retryInterval)
		time.Sleep(retryInterval)
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
}

func sendRecords(address string, recordsPerSecond, maxRetries int, retryInterval time.Duration, seed int64) error {
	conn, err := dial(address, maxRetries, retryInterval)
	if err != nil {
		return err
	}
	defer func() { conn.Close() }()

	r := rand.New(rand.NewSource(seed))
	ticker := time.NewTicker(time.Second / time.Duration(recordsPerSecond))
	defer ticker.Stop()

	log.Info().Printf("Starting to generate %d EMF records per second...", recordsPerSecond)
	for now := range ticker.C {
		data, err := json.Marshal(testbed.NewRecord(r, now))
		if err != nil {
			log.Warn().Printf("Failed to marshal EMF: %v", err)
			continue
		}
		// newline delimited for the Fluent Bit tcp input
		data = append(data, '\n')

		if _, err := conn.Write(data); err != nil {
			log.Warn().Printf("Failed to write to socket: %v", err)
			conn.Close()
			if conn, err = dial(address, maxRetries, retryInterval); err != nil {
				return err
			}
		}
	}
	return nil
}
