package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Pairup/internal/adapters/auth"
	router "github.com/dkeye/Pairup/internal/adapters/http"
	wssignal "github.com/dkeye/Pairup/internal/adapters/signal"
	"github.com/dkeye/Pairup/internal/adapters/store"
	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/config"
	"github.com/dkeye/Pairup/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	var (
		recorder  core.MatchRecorder
		directory core.Directory
		pg        *store.Postgres
		rdb       *redis.Client
	)
	if cfg.Postgres.URL != "" {
		pg, err = connectPostgres(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, running without match log and directory")
		} else {
			recorder = pg
			directory = store.NewDisplayCache(nil, pg, 0)
		}
	}
	if pg != nil && cfg.Redis.Addr != "" {
		pingCtx, pingCancel := context.WithTimeout(ctx, cfg.Collab.Timeout)
		rdb, err = store.NewRedis(pingCtx, cfg.Redis.Addr, cfg.Redis.DB)
		pingCancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, display cache disabled")
		} else {
			directory = store.NewDisplayCache(rdb, pg, cfg.Redis.TTL)
		}
	}

	var authenticator core.Authenticator
	if cfg.JWT.Secret != "" {
		authenticator = auth.New(cfg.JWT.Secret)
	} else {
		log.Warn().Msg("jwt.secret empty, every connection is anonymous")
	}

	var policy app.MatchPolicy = app.PreferencePolicy{}
	if cfg.Match.Policy == "fifo" {
		policy = app.AnyPolicy{}
	}
	o := orch.New(orch.Options{
		Grace:         cfg.Room.Grace,
		Policy:        policy,
		Recorder:      recorder,
		RoomCapacity:  cfg.Room.Capacity,
		RecordTimeout: cfg.Collab.Timeout,
	})

	ctl := wssignal.NewSignalWSController(o, authenticator, directory, wssignal.NewRateLimiter(cfg.Rate.Limit, cfg.Rate.Interval))
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod
	ctl.SendBuffer = cfg.SendBuffer
	ctl.LookupTimeout = cfg.Collab.Timeout

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(r, cfg.CORSAllow),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Pairup server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		o.Shutdown(shutdownCtx)
		if rdb != nil {
			_ = rdb.Close()
		}
		if pg != nil {
			pg.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*store.Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pg, err := store.NewPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(ctx, pg); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
