package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/anggasct/signalflow"
	"github.com/anggasct/signalflow/pkg/actuator"
	"github.com/anggasct/signalflow/pkg/dashboard"
	"github.com/anggasct/signalflow/pkg/detector"
	"github.com/anggasct/signalflow/pkg/logging"
	"github.com/anggasct/signalflow/pkg/metrics"
	"github.com/anggasct/signalflow/pkg/observers"
	"github.com/anggasct/signalflow/visualization"
)

type options struct {
	configPath   string
	verbosity    int
	development  bool
	dashboard    bool
	dot          bool
	metricsAddr  string
	actuatorAddr string
	detectorMode string
	replayFile   string
	subscribe    string
	seed         int64
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file (defaults apply when empty)")
	flag.IntVar(&opts.verbosity, "v", logging.DEFAULT, "Log verbosity (2 default, 3 verbose, 4 debug, 5 trace)")
	flag.BoolVar(&opts.development, "dev", false, "Human readable development logs")
	flag.BoolVar(&opts.dashboard, "dashboard", false, "Show the terminal dashboard")
	flag.BoolVar(&opts.dot, "dot", false, "Print the signal cycle as Graphviz DOT and exit")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address, e.g. :9090")
	flag.StringVar(&opts.actuatorAddr, "actuator-addr", "", "Phase change publisher URL, e.g. tcp://0.0.0.0:40899")
	flag.StringVar(&opts.detectorMode, "detector", "", "Detector mode: random, replay or subscribe")
	flag.StringVar(&opts.replayFile, "replay", "", "Replay script for the replay detector")
	flag.StringVar(&opts.subscribe, "subscribe", "", "Vision pipeline URL for the subscribe detector")
	flag.Int64Var(&opts.seed, "seed", 0, "Seed of the random detector")
	flag.Parse()
	return opts
}

func loadConfig(opts options) (signalflow.Config, error) {
	config := signalflow.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := signalflow.LoadConfig(opts.configPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	// flags override the file
	if opts.metricsAddr != "" {
		config.Metrics.Address = opts.metricsAddr
	}
	if opts.actuatorAddr != "" {
		config.Actuator.Address = opts.actuatorAddr
	}
	if opts.detectorMode != "" {
		config.Detector.Mode = opts.detectorMode
	}
	if opts.replayFile != "" {
		config.Detector.ReplayFile = opts.replayFile
	}
	if opts.subscribe != "" {
		config.Detector.Address = opts.subscribe
	}
	if opts.seed != 0 {
		config.Detector.Seed = opts.seed
	}

	return config, config.Validate()
}

func main() {
	opts := parseFlags()

	logger := logging.NewLogger(logging.Options{Verbosity: opts.verbosity, Development: opts.development})
	if opts.dashboard {
		// the dashboard owns the terminal
		logger = logr.Discard()
	}

	config, err := loadConfig(opts)
	if err != nil {
		logging.Fatal(logger, err, "Invalid configuration")
	}

	if opts.dot {
		approaches, err := config.ApproachSet()
		if err != nil {
			logging.Fatal(logger, err, "Invalid approaches")
		}
		content, err := visualization.NewDOTGenerator(approaches, config.Signal).Generate()
		if err != nil {
			logging.Fatal(logger, err, "Failed to render cycle")
		}
		fmt.Print(content)
		return
	}

	if err := run(logger, config, opts.dashboard); err != nil {
		logging.Fatal(logger, err, "Controller stopped with error")
	}
}

func run(logger logr.Logger, config signalflow.Config, showDashboard bool) error {
	registry := metrics.NewRegistry()
	watchers := []signalflow.Observer{
		observers.NewDefaultLoggingObserver(logger),
		metrics.NewObserver(registry),
	}

	var publisher *actuator.Publisher
	if config.Actuator.Address != "" {
		p, err := actuator.NewPublisher(config.Actuator.Address, logger.WithName("actuator"))
		if err != nil {
			return err
		}
		publisher = p
		watchers = append(watchers, publisher)
	}

	intersection, err := signalflow.NewIntersection(config, logger, watchers...)
	if err != nil {
		return err
	}

	source, err := detector.New(config.Detector, intersection.Approaches, logger.WithName("detector"))
	if err != nil {
		return err
	}

	loop, err := intersection.NewControlLoop(source,
		signalflow.WithLoopLogger(logger.WithName("loop")),
		signalflow.WithRecorder(registry))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := intersection.Machine.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	if config.Metrics.Address != "" {
		server := &http.Server{
			Addr:              config.Metrics.Address,
			Handler:           registry.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Metrics endpoint listening", "address", config.Metrics.Address)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if showDashboard {
		g.Go(func() error {
			defer stop()
			return dashboard.Run(intersection.Machine, intersection.Analyzer, 250*time.Millisecond)
		})
	}

	waitErr := g.Wait()

	// the loop has returned; stop the machine before releasing external handles
	if err := intersection.Machine.Reset(); err != nil {
		logger.Error(err, "Failed to reset signal machine")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error(err, "Failed to close actuator publisher")
		}
	}
	if err := source.Close(); err != nil {
		logger.Error(err, "Failed to close detector")
	}

	logger.Info("Controller stopped")
	return waitErr
}
