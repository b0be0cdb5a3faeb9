// Command sleepctl imports sleep exports and prints reports without running
// the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sleepimport/internal/config"
	"github.com/JonMunkholm/sleepimport/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sleepctl: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := newCLIApp(cfg, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sleepctl: %v\n", err)
		os.Exit(1)
	}
}
