// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"channelcast/internal/application"
	"channelcast/internal/config"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/adapters/telegram"
	"channelcast/internal/infra/api"
	pg "channelcast/internal/infra/db/postgres"
	"channelcast/internal/infra/db/sqlite"
	"channelcast/internal/infra/i18n"
	"channelcast/internal/infra/logging"
	"channelcast/internal/infra/memory"
	"channelcast/internal/infra/metrics"
	red "channelcast/internal/infra/redis"
	"channelcast/internal/infra/sched"
	"channelcast/internal/usecase"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	mintFor := flag.String("mint-token", "", "print an operator API token for this subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if *mintFor != "" {
		tok, err := auth.Mint(*mintFor)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint token")
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, auth, logger); err != nil {
		logger.Fatal().Err(err).Msg("channelcast stopped")
	}
	logger.Info().Msg("channelcast stopped")
}

func run(ctx context.Context, cfg *config.Config, auth *api.AuthManager, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Database.Driver)

	// ---- Channel directory ----
	channels, txm, closeDB, err := openChannels(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// ---- Sessions, locks, rate limiting ----
	var (
		sessions    repository.SessionRepository
		locker      repository.Locker
		rateLimiter *red.RateLimiter
		sessionLen  interface{ Len() int }
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		sessions = red.NewSessionRepo(rc, cfg.Session.IdleTTL, time.Now)
		locker = red.NewLocker(rc)
		rateLimiter = red.NewRateLimiter(rc)
		logger.Info().Msg("sessions in redis")
	} else {
		store := memory.NewSessionStore(cfg.Session.IdleTTL, time.Now)
		sessions, sessionLen = store, store
		locker = memory.NewLocker(time.Now)
		sweeper := sched.NewSessionSweeper(cfg.Session.SweepSpec, store, logger)
		go func() {
			if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("session sweeper stopped")
			}
		}()
		logger.Info().Dur("idle_ttl", cfg.Session.IdleTTL).Msg("sessions in memory")
	}

	// ---- Telegram ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	bot, err := telegram.NewBot(&cfg.Bot, translator, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if rateLimiter != nil && cfg.Bot.RateLimit > 0 {
		bot.WithRateLimiter(rateLimiter)
	}
	if cfg.Bot.Mode != "polling" {
		logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
	}

	// ---- Use cases ----
	ownership := usecase.Ownership{SingleTenant: cfg.Bot.SingleTenant}
	channelUC := usecase.NewChannelUseCase(channels, bot, ownership, translator, logger).WithTxManager(txm)
	composeUC := usecase.NewComposeUseCase(sessions, channels, ownership, logger)
	accessUC := usecase.NewAccessUseCase(cfg.Auth.Password, cfg.Bot.AdminIDs, sessions, logger)
	broadcastUC := usecase.NewBroadcastUseCase(
		sessions, channels, bot, locker,
		cfg.Broadcast.RatePerSec, cfg.Broadcast.LockTTL, ownership, logger,
	)
	facade := application.NewBotFacade(channelUC, composeUC, accessUC, broadcastUC, translator, logger)

	// ---- HTTP ----
	// A dead HTTP listener stops the bot too, so the process exits and restarts.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv := api.NewServer(channels, channelUC, sessionLen, auth, cfg.HTTP.Timeout, logger)
	httpErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe(runCtx, fmt.Sprintf(":%d", cfg.HTTP.Port))
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			cancel()
		}
		httpErr <- err
	}()

	logger.Info().
		Str("bot", bot.Username()).
		Bool("single_tenant", cfg.Bot.SingleTenant).
		Bool("password_gate", accessUC.Enabled()).
		Msg("channelcast started")

	botErr := bot.Serve(runCtx, facade)
	if errors.Is(botErr, context.Canceled) {
		botErr = nil
	}
	cancel()
	if err := <-httpErr; err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return botErr
}

// openChannels picks the directory backend and returns its transaction
// manager and closer.
func openChannels(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.ChannelRepository, repository.TransactionManager, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info().Str("path", cfg.Database.Path).Msg("channel directory on sqlite")
		return sqlite.NewChannelRepo(db), db, func() { _ = db.Close() }, nil
	default:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
		logger.Info().Msg("channel directory on postgres")
		return pg.NewPostgresChannelRepo(pool), pg.NewTxManager(pool), pool.Close, nil
	}
}
