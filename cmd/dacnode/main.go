// Command dacnode is the process entrypoint for a Data Availability
// Committee node: it loads a config file, wires the Storage Adapter,
// Merkle Fact Store, Batch Applier, Gateway Client, Attestation Signer
// and Committee Loop together, then runs the loop until a shutdown
// signal arrives.
//
// Usage:
//
//	dacnode --config ./dacnode.conf
//
// Flags:
//
//	--config   path to the node's config file (default: ./dacnode.conf)
//	--version  print version and exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/starkware-libs/starkex-data-availability-committee/config"
	"github.com/starkware-libs/starkex-data-availability-committee/log"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	fs, configPath, showVersion := newFlagSet()
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Printf("dacnode %s (commit %s)\n", version, commit)
		return 0
	}

	logger := log.Default()
	logger.Info("dacnode starting", "version", version, "config", *configPath)

	data, err := os.ReadFile(*configPath)
	if err != nil {
		logger.Error("reading config file", "error", err)
		return 1
	}
	cfg, err := config.Load(data)
	if err != nil {
		logger.Error("loading config", "error", err)
		return 1
	}
	logger.Info("config loaded",
		"gateway_endpoint", cfg.AvailabilityGatewayEndpoint,
		"profile", cfg.Profile,
		"tree_height", cfg.TreeHeight,
		"polling_interval_seconds", cfg.PollingIntervalSeconds,
	)

	comp, err := wire(cfg, logger)
	if err != nil {
		logger.Error("wiring components", "error", err)
		return 1
	}
	logger.Info("signer ready", "public_key", fmt.Sprintf("%x", comp.signer.PublicKey().Bytes()))

	comp.telemetry.Start()
	defer comp.telemetry.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := comp.loop.Run(ctx); err != nil {
		logger.Error("committee loop halted", "error", err)
		return 1
	}

	logger.Info("shutdown complete")
	return 0
}
