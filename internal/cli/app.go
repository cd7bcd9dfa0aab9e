package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gravitas-games/foundry/internal/config"
	"github.com/gravitas-games/foundry/internal/logging"
	"github.com/gravitas-games/foundry/internal/metrics"
	"github.com/gravitas-games/foundry/internal/sim"
	"github.com/gravitas-games/foundry/internal/world"
	"github.com/gravitas-games/foundry/pkg/production"
)

// app is everything a command needs to drive one simulation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *production.SimpleEventBus
	world     *world.World
	sim       *sim.Simulation
	collector *metrics.Collector
	registry  *prometheus.Registry
}

// loadConfig applies flag overrides on top of the loaded configuration.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.worldFile != "" {
		cfg.Simulation.WorldFile = opts.worldFile
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

// loadWorld parses and builds the configured world.
func loadWorld(cfg *config.Config, bus production.EventBus, logger *slog.Logger) (*world.World, error) {
	def, err := world.LoadFile(cfg.Simulation.WorldFile)
	if err != nil {
		return nil, err
	}
	return world.Build(def,
		world.WithMaxStorage(cfg.Simulation.MaxStorage),
		world.WithEventBus(bus),
		world.WithLogger(logger),
	)
}

// newApp wires config, logging, the world, metrics and the simulation.
// Logs go to logOut.
func newApp(opts *globalOptions, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	bus := production.NewSimpleEventBus()
	w, err := loadWorld(cfg, bus, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("world loaded",
		"file", cfg.Simulation.WorldFile,
		"produce", w.Catalog.Len(),
		"processes", w.Processes.Count(),
		"producers", len(w.Producers))

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	collector.Subscribe(bus)

	s := sim.New(w,
		sim.WithEventBus(bus),
		sim.WithLogger(logger),
		sim.WithObserver(collector),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		bus:       bus,
		world:     w,
		sim:       s,
		collector: collector,
		registry:  registry,
	}, nil
}
