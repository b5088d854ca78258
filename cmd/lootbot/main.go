package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/vbonduro/lootbot/internal/bot"
	"github.com/vbonduro/lootbot/internal/config"
	"github.com/vbonduro/lootbot/internal/detect"
	claudedetect "github.com/vbonduro/lootbot/internal/detect/claude"
	onnxdetect "github.com/vbonduro/lootbot/internal/detect/onnx"
	"github.com/vbonduro/lootbot/internal/inventory"
	"github.com/vbonduro/lootbot/internal/logging"
	"github.com/vbonduro/lootbot/internal/metrics"
	"github.com/vbonduro/lootbot/internal/response"
	"github.com/vbonduro/lootbot/internal/scratch"
	"github.com/vbonduro/lootbot/internal/service"
	"github.com/vbonduro/lootbot/internal/web"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("lootbot stopped", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vocab, err := loadVocabulary(cfg)
	if err != nil {
		return err
	}

	pool, err := newDetectorPool(cfg, vocab, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close detectors", "error", err)
		}
		if cfg.DetectorBackend == config.BackendONNX {
			if err := onnxdetect.Shutdown(); err != nil {
				logger.Error("failed to shut down onnxruntime", "error", err)
			}
		}
	}()

	m := metrics.New()
	selector := response.NewSelector(vocab, nil, logger)
	store := scratch.NewStore(cfg.ScratchDir, logger)
	lootService := service.NewLootService(store, pool, vocab, selector, m, logger)

	if cfg.MetricsAddr != "" {
		server := web.NewServer(m.Handler(), logger)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("server error", "error", err)
			}
		}()
	}

	bridgeDiscordLogs(logger)
	discord, err := bot.NewDiscord(cfg.DiscordToken, logger)
	if err != nil {
		return err
	}
	handler := bot.NewHandler(lootService, discord, cfg.BragChannel, cfg.CommandPrefix, logger)

	logger.Info("starting lootbot",
		"backend", cfg.DetectorBackend,
		"workers", pool.Size(),
		"brag_channel", cfg.BragChannel,
		"tracked_items", vocab.Len(),
	)
	return discord.Run(ctx, handler)
}

func loadVocabulary(cfg *config.Config) (*inventory.Vocabulary, error) {
	if cfg.VocabularyPath == "" {
		return inventory.DefaultVocabulary(), nil
	}
	vocab, err := inventory.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	return vocab, nil
}

func newDetectorPool(cfg *config.Config, vocab *inventory.Vocabulary, logger *slog.Logger) (*detect.Pool, error) {
	workers := cfg.Workers()
	detectors := make([]detect.Detector, 0, workers)

	switch cfg.DetectorBackend {
	case config.BackendClaude:
		logger.Info("using Claude detector backend", "model", cfg.ClaudeModel)
		for range workers {
			detectors = append(detectors,
				claudedetect.NewDetector(cfg.ClaudeAPIKey, cfg.ClaudeModel, vocab.Labels(), logger))
		}
	case config.BackendONNX:
		logger.Info("using ONNX detector backend", "model", cfg.ModelPath)
		if err := onnxdetect.Initialize(cfg.ONNXRuntimeLib); err != nil {
			return nil, err
		}
		labels, err := onnxdetect.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load labels: %w", err)
		}
		onnxCfg := onnxdetect.Config{
			ModelPath:           cfg.ModelPath,
			Labels:              labels,
			InputSize:           cfg.ModelInputSize,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			IoUThreshold:        cfg.IoUThreshold,
		}
		if workers > 1 {
			onnxCfg.IntraOpThreads = max(1, runtime.NumCPU()/workers)
		}
		for range workers {
			d, err := onnxdetect.NewDetector(onnxCfg, logger)
			if err != nil {
				closeAll(detectors, logger)
				return nil, err
			}
			detectors = append(detectors, d)
		}
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.DetectorBackend)
	}

	return detect.NewPool(detectors...), nil
}

func closeAll(detectors []detect.Detector, logger *slog.Logger) {
	var errs []error
	for _, d := range detectors {
		if c, ok := d.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error("failed to close detectors", "error", err)
	}
}

// bridgeDiscordLogs routes discordgo's internal logging through slog.
func bridgeDiscordLogs(logger *slog.Logger) {
	discordgo.Logger = func(msgL, caller int, format string, a ...any) {
		level := slog.LevelDebug
		switch msgL {
		case discordgo.LogError:
			level = slog.LevelError
		case discordgo.LogWarning:
			level = slog.LevelWarn
		case discordgo.LogInformational:
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, fmt.Sprintf(format, a...), "component", "discordgo")
	}
}
