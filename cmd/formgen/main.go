package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"yoyaku/internal/api"
	"yoyaku/internal/config"
	"yoyaku/internal/deploy"
	"yoyaku/internal/events"
	"yoyaku/internal/gcal"
	"yoyaku/internal/metrics"
	"yoyaku/internal/notify"
	"yoyaku/internal/publish"
	"yoyaku/internal/store"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("YOYAKU_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Logging.Console {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	logger = logger.Level(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := store.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	deployer, err := deploy.New(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create deployer error")
	}

	bus := events.NewEventBus()
	svc := publish.NewService(database, deployer, bus, &logger)
	if rdb != nil {
		svc.UseHashStore(publish.NewRedisHashes(rdb))
	}

	if cfg.Calendar.Enabled {
		loc, err := time.LoadLocation(cfg.CalendarTimeZone())
		if err != nil {
			logger.Fatal().Err(err).Msg("load calendar time zone")
		}
		calAPI, err := gcal.NewAPI(ctx, cfg.Calendar.CredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("create calendar client error")
		}
		checker := gcal.NewChecker(calAPI, cfg.Calendar.CalendarID, loc, cfg.CalendarCacheTTL(), &logger)
		if rdb != nil {
			checker.UseRedisCache(rdb)
		}
		svc.UseChecker(checker, loc)
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		bot.Debug = cfg.Telegram.Debug
		notify.NewTelegram(bot, cfg.Telegram.ChatIDs, cfg.TelegramRate(), &logger).Subscribe(bus)
	}

	if err := config.WatchForms(ctx, cfg.FormsDir(), cfg.FormsWatchInterval(),
		func(ff config.FormFile) { syncForm(ctx, svc, ff, cfg.Forms.AutoPublish, &logger) },
		func(path string, err error) { logger.Error().Err(err).Str("path", path).Msg("invalid form file") },
	); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.FormsDir()).Msg("forms directory not watched")
	}

	go store.NewBackupService(database, cfg, &logger).Start(ctx)

	go startHealthServer(ctx, cfg.HealthPort(), database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}

	server := api.NewHTTPServer(cfg.ServerAddress(), cfg.Server.APIKey, svc, database, cfg.ReadTimeout(), cfg.WriteTimeout(), &logger)
	logger.Info().Str("deploy_target", cfg.Deploy.Target).Msg("Form generator started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

// syncForm stores a form file picked up by the watcher and optionally
// publishes it.
func syncForm(ctx context.Context, svc *publish.Service, ff config.FormFile, autoPublish bool, logger *zerolog.Logger) {
	if _, err := deploy.Key(ff.ID); err != nil {
		logger.Error().Err(err).Str("path", ff.Path).Msg("form file name cannot be used as form id")
		return
	}
	if _, err := svc.Save(ctx, ff.ID, ff.Data); err != nil {
		logger.Error().Err(err).Str("form_id", ff.ID).Msg("save form from file")
		return
	}
	logger.Info().Str("form_id", ff.ID).Str("path", ff.Path).Msg("Form loaded from file")
	if !autoPublish {
		return
	}
	if _, err := svc.Publish(ctx, ff.ID, false); err != nil {
		logger.Error().Err(err).Str("form_id", ff.ID).Msg("auto publish")
	}
}

func startHealthServer(ctx context.Context, port int, database *store.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
