package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aetherflow/quantumsim/cmd/quantumsim-sim/config"
	"github.com/aetherflow/quantumsim/internal/runid"
	"github.com/aetherflow/quantumsim/internal/simulator"
	"github.com/aetherflow/quantumsim/internal/tracing"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var (
	configFile = flag.String("f", "configs/quantumsim.yaml", "path to the run's YAML config")
	version    = "0.1.0"
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quantumsim-sim: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	id, err := runid.New()
	if err != nil {
		logger.Fatal("failed to generate run id", zap.Error(err))
	}
	logger = logger.With(zap.String("run_id", id.String()))

	logger.Info("starting quantumsim-sim",
		zap.String("version", version),
		zap.String("protocol", cfg.Protocol),
		zap.Float64("horizon", cfg.Horizon))

	tracingCfg := &tracing.Config{
		Enable:       cfg.Tracing.Enable,
		ServiceName:  cfg.Tracing.ServiceName,
		Endpoint:     cfg.Tracing.Endpoint,
		Exporter:     cfg.Tracing.Exporter,
		SampleRate:   cfg.Tracing.SampleRate,
		Environment:  cfg.Tracing.Environment,
		BatchTimeout: cfg.Tracing.BatchTimeout,
		MaxQueueSize: cfg.Tracing.MaxQueueSize,
		RunID:        id.String(),
	}
	provider, err := tracing.NewProvider(tracingCfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer provider.Shutdown(context.Background())

	hook := tracing.MultiHook{tracing.NewZapHook(logger), provider.Hook()}

	simCfg, err := toSimulatorConfig(cfg)
	if err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	sim := simulator.New(simCfg, func(payload []byte) {
		logger.Debug("delivered", zap.ByteString("payload", payload))
	}, hook)

	stats := sim.Run(cfg.Horizon)

	logger.Info("run complete", zap.String("stats", stats.String()))
	fmt.Println(stats.String())
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg.Level = level
	return zcfg.Build()
}

func loadConfig(filename string) (*config.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("config file not found, using default config\n")
			return config.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := config.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func toSimulatorConfig(cfg *config.Config) (simulator.Config, error) {
	protocol := simulator.GBN
	windowSize := uint32(cfg.Window)
	switch cfg.Protocol {
	case "abp":
		protocol = simulator.ABP
		windowSize = 1
	case "gbn":
		protocol = simulator.GBN
	default:
		return simulator.Config{}, fmt.Errorf("unknown protocol %q, want \"abp\" or \"gbn\"", cfg.Protocol)
	}

	traffic, err := toTrafficSource(cfg.Traffic, cfg.RNGSeed, cfg.Horizon)
	if err != nil {
		return simulator.Config{}, err
	}

	return simulator.Config{
		Protocol:        protocol,
		WindowSize:      windowSize,
		BufSize:         uint32(cfg.BufSize),
		InitialRTO:      cfg.RTO.Initial,
		RTOMin:          cfg.RTO.Min,
		RTOMax:          cfg.RTO.Max,
		BackoffCap:      cfg.RTO.BackoffCap,
		LossProb:        cfg.Channel.LossProb,
		CorruptProb:     cfg.Channel.CorruptProb,
		LatencyMin:      cfg.Channel.LatencyMin,
		LatencyMax:      cfg.Channel.LatencyMax,
		RNGSeed:         cfg.RNGSeed,
		FECEnabled:      cfg.FEC.Enable,
		FECDataShards:   cfg.FEC.DataShards,
		FECParityShards: cfg.FEC.ParityShards,
		Traffic:         traffic,
	}, nil
}

func toTrafficSource(cfg config.TrafficConfig, rngSeed int64, horizon float64) (simulator.TrafficSource, error) {
	switch cfg.Mode {
	case "scripted":
		sends := make(simulator.ScriptedTraffic, 0, len(cfg.Scripted))
		for _, entry := range cfg.Scripted {
			sends = append(sends, simulator.ScriptedSend{At: entry.At, Data: []byte(entry.Message)})
		}
		return sends, nil
	case "poisson":
		return simulator.PoissonTraffic{
			Lambda:  cfg.Poisson.Lambda,
			MinSize: cfg.Poisson.MinSize,
			MaxSize: cfg.Poisson.MaxSize,
			Horizon: horizon,
			// Reuses the run's own seed rather than a wall-clock source so
			// a given config file reproduces the same traffic every time.
			RNGSeed: rngSeed,
		}, nil
	default:
		return nil, fmt.Errorf("unknown traffic mode %q, want \"scripted\" or \"poisson\"", cfg.Mode)
	}
}
