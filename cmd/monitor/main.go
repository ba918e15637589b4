package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/api"
	"github.com/bobby-s-dev/weather-monitor/internal/archive"
	"github.com/bobby-s-dev/weather-monitor/internal/config"
	"github.com/bobby-s-dev/weather-monitor/internal/memory"
	"github.com/bobby-s-dev/weather-monitor/internal/notify"
	"github.com/bobby-s-dev/weather-monitor/internal/observability"
	"github.com/bobby-s-dev/weather-monitor/internal/scheduler"
	"github.com/bobby-s-dev/weather-monitor/internal/services"
	"github.com/bobby-s-dev/weather-monitor/pkg/client"
)

func main() {
	once := flag.Bool("once", false, "run a single monitoring pass and exit")
	flag.Parse()

	os.Exit(run(*once))
}

// run returns the process exit code once every deferred close has happened.
func run(once bool) int {
	// Bootstrap logger until the configured level is known
	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err = observability.NewLogger(cfg.Server.LogLevel)
	if err != nil {
		zap.L().Error("Failed to build logger", zap.Error(err))
		return 1
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("Starting Weather Monitor", zap.Int("cities", len(cfg.Scheduler.Cities)), zap.Bool("once", once))

	clock := clockwork.NewRealClock()
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("Close failed", zap.Error(err))
			}
		}
	}()

	store, closer := newStore(cfg, clock, logger)
	if closer != nil {
		closers = append(closers, closer)
	}

	history, closer, err := newArchive(cfg, logger)
	if err != nil {
		logger.Error("Failed to open archive", zap.Error(err))
		return 1
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	sender, closer := newSender(cfg, clock, logger)
	if closer != nil {
		closers = append(closers, closer)
	}

	clientConfig := client.ClientConfig{
		Timeout:        cfg.HTTPClient.Timeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}
	weatherConfig := clientConfig
	if cfg.QWeather.Referer != "" {
		weatherConfig.Headers = map[string]string{"Referer": cfg.QWeather.Referer}
	}
	source := client.NewQWeatherClient(cfg.QWeather.APIKey, cfg.QWeather.BaseURL, weatherConfig, logger)

	var briefer services.Briefer
	if cfg.Gemini.APIKey != "" {
		briefer = client.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL, clientConfig, logger)
		logger.Info("Gemini briefings enabled", zap.String("model", cfg.Gemini.Model))
	} else {
		logger.Warn("GOOGLE_API_KEY not set, briefings use placeholder text")
	}

	monitor := services.NewMonitor(services.Options{
		Locations:   cfg.Scheduler.Cities,
		Thresholds:  cfg.Alerts,
		Quiet:       cfg.QuietHours,
		DetailURL:   cfg.Notify.DetailURL,
		BriefPacing: cfg.Gemini.Pacing,
	},
		source,
		briefer,
		store,
		history,
		notify.NewBestEffort(cfg.Notify.Channel, sender, logger),
		clock,
		observability.NewMetrics(),
		logger,
	)

	if once {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.RunTimeout)
		defer cancel()
		if _, err := monitor.Run(ctx); err != nil {
			logger.Error("Monitor run failed", zap.Error(err))
			return 1
		}
		return 0
	}

	return serve(cfg, monitor, history, clock, logger)
}

func serve(cfg *config.Config, monitor *services.Monitor, history archive.Reader, clock clockwork.Clock, logger *zap.Logger) int {
	monitorScheduler, err := scheduler.NewScheduler(monitor, cfg.Scheduler.Schedule, cfg.Scheduler.RunTimeout, clock, logger)
	if err != nil {
		logger.Error("Failed to initialize scheduler", zap.Error(err))
		return 1
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	handler := api.NewHandler(monitor, monitorScheduler, history, clock, logger)
	api.SetupRoutes(app, handler)

	// Start scheduler and run immediately
	monitorScheduler.Start()
	monitorScheduler.ForceRun()

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			listenErr <- err
		}
	}()

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	code := 0
	select {
	case <-quit:
	case err := <-listenErr:
		logger.Error("Failed to start server", zap.Error(err))
		code = 1
	}

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	monitorScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
	return code
}

func newStore(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) (memory.Store, io.Closer) {
	if cfg.Storage.MemoryBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		logger.Info("Using Redis memory store", zap.String("addr", cfg.Storage.RedisAddr))
		return memory.NewRedisStore(rdb, cfg.Storage.RedisPrefix, clock, logger), rdb
	}
	logger.Info("Using file memory store", zap.String("path", cfg.Storage.StatusFile))
	return memory.NewFileStore(cfg.Storage.StatusFile, clock, logger), nil
}

func newArchive(cfg *config.Config, logger *zap.Logger) (archive.Archive, io.Closer, error) {
	if cfg.Storage.ArchiveBackend == "sqlite" {
		db, err := archive.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite archive", zap.String("path", cfg.Storage.SQLitePath))
		return db, db, nil
	}
	logger.Info("Using file archive", zap.String("root", cfg.Storage.HistoryRoot))
	return archive.NewFileArchive(cfg.Storage.HistoryRoot, cfg.Storage.LatestFile, logger), nil, nil
}

func newSender(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) (notify.Sender, io.Closer) {
	switch cfg.Notify.Channel {
	case "wechat":
		return notify.NewWeChatSender(notify.WeChatConfig{
			BaseURL: cfg.WeChat.BaseURL,
			CorpID:  cfg.WeChat.CorpID,
			Secret:  cfg.WeChat.Secret,
			AgentID: cfg.WeChat.AgentID,
			Timeout: cfg.Notify.Timeout,
		}, clock, logger), nil
	case "pushplus":
		return notify.NewPushPlusSender(cfg.PushPlus.URL, cfg.PushPlus.Token, cfg.Notify.Timeout), nil
	case "kafka":
		k := notify.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.Topic, clock)
		return k, k
	default:
		return notify.NewLogSender(logger), nil
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
