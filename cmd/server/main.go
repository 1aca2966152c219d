package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"dmcore/internal/broker"
	"dmcore/internal/config"
	"dmcore/internal/httpserver"
	"dmcore/internal/logging"
	"dmcore/internal/presence"
	"dmcore/internal/ratelimit"
	"dmcore/internal/security"
	"dmcore/internal/service"
	"dmcore/internal/store"
	"dmcore/internal/store/postgres"
	"dmcore/internal/store/sqlite"
	"dmcore/internal/ws"
)

// @title           dmcore API
// @version         1.0
// @description     Direct messaging core: conversations, messages, reactions and read state.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel, cfg.LogSink)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type repos struct {
	convs    *store.Store
	profiles *store.ProfileRepo
	blocks   *store.BlockRepo
}

func openStore(cfg *config.Config, codec store.Codec) (*sql.DB, *repos, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, &repos{
			convs:    postgres.NewStore(db, codec),
			profiles: postgres.NewProfileRepo(db),
			blocks:   postgres.NewBlockRepo(db),
		}, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, &repos{
			convs:    sqlite.NewStore(db, codec),
			profiles: sqlite.NewProfileRepo(db),
			blocks:   sqlite.NewBlockRepo(db),
		}, nil
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey))
	if err != nil {
		return err
	}
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.JWTIssuer)

	db, r, err := openStore(cfg, encryptor)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("store ready", "driver", cfg.DBDriver)

	local := broker.NewMemory(64)
	var (
		events   broker.Broker = local
		tracker  presence.Tracker
		notifier service.Notifier = service.NewLogNotifier(log)
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		rb, err := broker.NewRedis(ctx, rdb, local, log)
		if err != nil {
			return err
		}
		defer rb.Close()
		events = rb
		tracker = presence.NewRedis(rdb, cfg.TypingTTL)
		notifier = service.NewRedisPushQueue(rdb, cfg.PushQueue)
		log.Info("redis fan-out enabled", "addr", cfg.RedisAddr)
	} else {
		tracker = presence.NewMemory(cfg.TypingTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := ws.NewHub()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dmcore",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}, func() float64 { return float64(hub.Connections()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dmcore",
			Subsystem: "broker",
			Name:      "subscriptions",
			Help:      "Live in-process subscriptions.",
		}, func() float64 { return float64(local.Subscribers()) }),
	)

	gw := service.NewGateway(service.GatewayDeps{
		Conversations:    r.convs,
		Blocks:           r.blocks,
		Profiles:         r.profiles,
		Broker:           events,
		Presence:         tracker,
		Notifier:         notifier,
		Metrics:          service.NewMetrics(reg),
		Logger:           log,
		MaxMessageLength: cfg.MaxMessageLength,
	})
	dir := service.NewDirectory(r.convs, r.blocks, tracker, cfg.MessagePageSize, log)
	profiles := service.NewProfiles(r.profiles, events, log)
	limiter := ratelimit.NewPool(cfg.SendRatePerSecond, cfg.SendBurst)

	wsHandler := ws.MakeHandler(ws.Deps{
		Hub:            hub,
		Tokens:         tokenSvc,
		Gateway:        gw,
		Directory:      dir,
		Profiles:       profiles,
		Broker:         events,
		Limiter:        limiter,
		Logger:         log,
		AllowedOrigins: cfg.CORSOrigins,
		PageSize:       cfg.MessagePageSize,
		ReadDelay:      cfg.ReadDelay,
		TypingTimeout:  cfg.TypingTTL,
	})

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Tokens:    tokenSvc,
		Gateway:   gw,
		Directory: dir,
		Profiles:  profiles,
		Limiter:   limiter,
		Logger:    log,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		WS:        wsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting dmcore server", "addr", cfg.HTTPAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
	}
	return nil
}
