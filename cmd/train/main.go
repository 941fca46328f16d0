package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/clinic/internal/adapters/dataset"
	"github.com/okian/clinic/internal/trainer"
	"github.com/okian/clinic/pkg/logger"
)

func main() {
	var (
		variant  = flag.String("variant", string(trainer.Basic), "Candidate set: basic or extended")
		out      = flag.String("out", ".", "Directory for model.json and metrics.json")
		data     = flag.String("data", "", "CSV with the diabetes header (default: bundled table)")
		compress = flag.Bool("xz", false, "Write model.json.xz instead of model.json")
		level    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Logs go to stderr so stdout carries only the summary line.
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("trainer")
	if err := logger.SetLevelString(*level); err != nil {
		log.Warn(context.Background(), "invalid log level; using info", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, err := trainer.ParseVariant(*variant)
	if err != nil {
		log.Fatal(ctx, "invalid variant", logger.Error(err))
	}

	opts := []trainer.Option{
		trainer.WithVariant(v),
		trainer.WithOutputDir(*out),
		trainer.WithCompressedArtifact(*compress),
		trainer.WithLogger(log),
	}
	if *data != "" {
		table, err := dataset.LoadCSV(*data)
		if err != nil {
			log.Fatal(ctx, "failed to load dataset", logger.String("path", *data), logger.Error(err))
		}
		opts = append(opts, trainer.WithDataset(table))
	}

	if _, err := trainer.New(opts...).Run(ctx); err != nil {
		log.Fatal(ctx, "training failed", logger.Error(err))
	}
}
