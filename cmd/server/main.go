// Package main is the entry point for the midi2notes API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/midi2notes/pkg/api"
	"github.com/james-see/midi2notes/pkg/logger"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	level := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := logger.InitLogger(*level); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting midi2notes API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
