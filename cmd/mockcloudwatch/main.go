package main

import (
	"net/http"
	"os"

	"github.com/anthonydresser/fluent-bit-khisto/internal/mockcloudwatch"
	"github.com/anthonydresser/fluent-bit-khisto/log"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4566"
	}

	log.Init("mockcloudwatch", log.InfoLevel)
	defer log.Sync()

	log.Info().Printf("Starting mock CloudWatch Logs server on port %s", port)
	if err := http.ListenAndServe(":"+port, mockcloudwatch.NewServer()); err != nil {
		log.Error().Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
