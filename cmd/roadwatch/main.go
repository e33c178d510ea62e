// Package main provides the roadwatch snapshot pipeline.
//
// One invocation runs the pipeline once: fetch the upstream roadmap feed,
// validate it, diff it against the previous snapshot, persist the snapshot
// artifacts atomically, and record health. Exit code 0 on success, 1 on any
// unrecoverable failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roadwatch-io/roadwatch/internal/config"
	"github.com/roadwatch-io/roadwatch/internal/pipeline"
)

// Version information.
const (
	version = "1.0.0"
	name    = "roadwatch"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	jsonFlag := flag.Bool("json", false, "emit a single-line JSON summary on stdout")
	configFlag := flag.String("config", "", "path to the YAML config file (default $ROADWATCH_CONFIG_PATH or .roadwatch.yaml)")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.GetEnvStr(pipeline.ConfigPathEnvVar, pipeline.DefaultConfigPath)
	}

	cfg := pipeline.LoadConfig(configPath)

	// Logs go to stderr so stdout stays clean for the JSON summary.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("Starting roadwatch pipeline",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("config_path", configPath),
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.New(cfg, version, logger)

	defer func() {
		_ = runner.Close() // Flush the change feed writer on normal shutdown
	}()

	summary := runner.Run(ctx)

	if *jsonFlag {
		if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
			logger.Error("Failed to encode summary", slog.String("error", err.Error()))
		}
	}

	if !summary.Success {
		_ = runner.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}
}
