package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/paysim/internal/config"
	"github.com/torosent/paysim/internal/dashboard"
	"github.com/torosent/paysim/internal/exporter"
	"github.com/torosent/paysim/internal/httpclient"
	"github.com/torosent/paysim/internal/logging"
	"github.com/torosent/paysim/internal/output"
	"github.com/torosent/paysim/internal/runner"
	"github.com/torosent/paysim/internal/threshold"
	"github.com/torosent/paysim/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := ulid.Make().String()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	client, err := httpclient.NewPaymentClient(httpclient.Options{
		BaseURL:   cfg.TargetURL,
		Headers:   cfg.Headers,
		Propagate: provider.ShouldPropagate(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observers, stopObservers, err := buildObservers(cfg, runID, seed, stdout, stderr, logger, cancel)
	if err != nil {
		return err
	}

	logger.Info("starting simulation",
		zap.String("run_id", runID),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("total", cfg.Total),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Int64("seed", seed),
		zap.String("target", cfg.TargetURL),
	)

	if cfg.Output == config.OutputText && !cfg.Dashboard {
		output.PrintHeader(stdout, output.RunInfo{
			RunID:          runID,
			Target:         cfg.TargetURL,
			TotalRequests:  cfg.Total,
			Mode:           string(cfg.Mode),
			MaxConcurrency: cfg.Concurrency,
			Seed:           seed,
		})
	}

	scheduler := runner.New(runner.Options{
		RunID:          runID,
		Mode:           cfg.Mode,
		TotalRequests:  cfg.Total,
		MaxConcurrency: cfg.Concurrency,
		Timeout:        cfg.Timeout,
		HealthTimeout:  cfg.HealthTimeout,
		RatePerSecond:  cfg.Rate,
		Seed:           seed,
		Client:         client,
		Observers:      observers,
		Logger:         logger,
		Tracer:         provider.Tracer(),
	})
	result := scheduler.Run(ctx)
	stopObservers()

	report := result.Report
	results := threshold.NewEvaluator(thresholds).Evaluate(report)

	if err := writeReport(stdout, cfg.Output, output.Document{Report: report, Thresholds: results}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("simulation finished",
		zap.String("run_id", runID),
		zap.Int64("requests", report.TotalRequests),
		zap.Int64("successful", report.SuccessCount),
		zap.Float64("total_amount", report.TotalAmount),
		zap.Duration("elapsed", result.Duration),
	)

	if result.Err != nil {
		return result.Err
	}
	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

// buildObservers wires the live consumers of scheduler events. The returned
// stop function tears down anything started here and is safe to call once.
func buildObservers(cfg *config.Config, runID string, seed int64, stdout, stderr io.Writer, logger *zap.Logger, cancel context.CancelFunc) ([]runner.Observer, func(), error) {
	var (
		observers []runner.Observer
		stops     []func()
	)
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	textOutput := cfg.Output == config.OutputText
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(dashboard.RunConfig{
			RunID:       runID,
			TargetURL:   cfg.TargetURL,
			Mode:        string(cfg.Mode),
			Total:       cfg.Total,
			Concurrency: cfg.Concurrency,
			Rate:        cfg.Rate,
			Timeout:     cfg.Timeout,
			Seed:        seed,
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return nil, nil, err
		}
		dash.Start()
		observers = append(observers, dash)
		stops = append(stops, dash.Stop)
	case textOutput && !cfg.Quiet:
		observers = append(observers, output.NewOutcomePrinter(stdout))
	case textOutput:
		progress := output.NewProgressReporter(cfg.Total, progressInterval, stderr)
		progress.Start()
		observers = append(observers, progress)
		stops = append(stops, progress.Stop)
	}

	if cfg.MetricsAddr != "" {
		collector := exporter.NewCollector()
		srv, err := exporter.Start(cfg.MetricsAddr, collector, logger)
		if err != nil {
			stop()
			return nil, nil, err
		}
		observers = append(observers, collector)
		stops = append(stops, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		})
	}

	return observers, stop, nil
}

func writeReport(w io.Writer, format config.OutputFormat, doc output.Document) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, doc)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, doc)
	default:
		output.PrintReport(w, doc.Report, doc.Thresholds)
		return nil
	}
}
