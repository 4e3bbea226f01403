// Package main is the entry point for the neonhorizon API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/neonhorizon/pkg/api"
	"github.com/james-see/neonhorizon/pkg/catalog"
	"github.com/james-see/neonhorizon/pkg/config"
	"github.com/james-see/neonhorizon/pkg/generator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	port := flag.Int("port", cfg.Port, "Server port")
	catalogPath := flag.String("catalog", cfg.CatalogPath, "YAML catalog overriding the built-in tables")
	flag.Parse()

	logger := cfg.NewLogger()

	cat := catalog.Default()
	if *catalogPath != "" {
		if cat, err = catalog.Load(*catalogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Catalog error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Starting neonhorizon API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, api.NewServer(cat, generator.Default(), logger)); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
