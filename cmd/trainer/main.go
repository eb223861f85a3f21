package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"paycast/internal/config"
	"paycast/internal/dataset"
	"paycast/internal/forecast"
	"paycast/internal/infrastructure"
	"paycast/internal/registry"
)

// consoleObserver logs training progress to the terminal
type consoleObserver struct {
	logger *slog.Logger
}

func (o consoleObserver) TrainingStarted(targets []string, quantiles []float64) {
	o.logger.Info("training started",
		slog.Any("targets", targets),
		slog.Any("quantiles", quantiles))
}

func (o consoleObserver) CVStarted(target string, quantile float64) {
	o.logger.Info("cross-validation started",
		slog.String("target", target),
		slog.Float64("quantile", quantile))
}

func (o consoleObserver) CVFinished(target string, quantile float64, bestRound int, bestScore float64) {
	o.logger.Info("cross-validation finished",
		slog.String("target", target),
		slog.Float64("quantile", quantile),
		slog.Int("best_round", bestRound),
		slog.Float64("best_score", bestScore))
}

func main() {
	specPath := flag.String("spec", "", "path to the model spec file (JSON or YAML)")
	dataPath := flag.String("data", "", "path to the training dataset (.csv or .xlsx)")
	outDir := flag.String("out", "data/models", "model registry directory")
	name := flag.String("name", "", "human-readable name for the model bundle")
	flag.Parse()

	logger := infrastructure.MustInitializeLogger(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "console",
	})

	if *specPath == "" || *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: trainer -spec spec.json -data train.csv [-out dir] [-name label]")
		os.Exit(2)
	}
	if *name == "" {
		*name = *dataPath
	}

	spec, err := config.LoadModelSpec(*specPath)
	if err != nil {
		logger.Error("failed to load model spec", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tbl, err := dataset.Load(*dataPath)
	if err != nil {
		logger.Error("failed to load dataset", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("dataset loaded",
		slog.String("path", *dataPath),
		slog.Int("rows", tbl.Len()),
		slog.Int("columns", len(tbl.Columns())))

	f, err := forecast.New(spec, logger)
	if err != nil {
		logger.Error("failed to build forecaster", slog.String("error", err.Error()))
		os.Exit(1)
	}

	result, err := f.Train(context.Background(), tbl, consoleObserver{logger: logger})
	if err != nil {
		logger.Error("training failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	reg, err := registry.New(*outDir, logger)
	if err != nil {
		logger.Error("failed to open registry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	manifest, err := reg.Save(f, *name)
	if err != nil {
		logger.Error("failed to save model", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("model saved",
		slog.String("id", manifest.ID),
		slog.String("dir", *outDir),
		slog.Int("models", len(result.Models)))
	fmt.Println(manifest.ID)
}
