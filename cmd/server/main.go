package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contesthub/internal/config"
	"contesthub/internal/db"
	"contesthub/internal/handlers"
	"contesthub/internal/identity"
	"contesthub/internal/idempotency"
	"contesthub/internal/logger"
	"contesthub/internal/metrics"
	"contesthub/internal/models"
	"contesthub/internal/router"
	"contesthub/internal/services"
	"contesthub/internal/store"
	"contesthub/internal/store/memory"
	"contesthub/internal/store/postgres"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// repositories 存储驱动需要同时提供的三个接口。
type repositories interface {
	store.SubmissionRepository
	store.VoteRepository
	store.CommentRepository
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg := config.MustLoad(configPath)

	lg := logger.Setup(cfg.Env, os.Stdout)
	slog.SetDefault(lg)
	lg.Info("starting contesthub", "env", cfg.Env, "storage", cfg.Storage.Driver)

	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	var (
		repos    repositories
		checkers []handlers.Checker
		closers  []func() error
	)

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
		gdb, err := db.Open(dbCtx, cfg.DB, lg)
		dbCancel()
		if err != nil {
			lg.Error("db_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		if err := db.Migrate(gdb); err != nil {
			lg.Error("db_migrate_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			lg.Error("db_handle_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		repos = postgres.New(gdb)
		checkers = append(checkers, db.NewChecker(sqlDB))
		closers = append(closers, sqlDB.Close)
		lg.Info("db_connected")
	default:
		mem := memory.New()
		for _, id := range cfg.Storage.SeedSubmissions {
			mem.AddSubmission(models.Submission{ID: id, Title: "seed"})
		}
		repos = mem
		lg.Warn("using in-memory storage, data is lost on restart", "seeded", len(cfg.Storage.SeedSubmissions))
	}

	var (
		idem idempotency.Store
		gens services.Generations
	)
	if cfg.Redis.URL != "" {
		rs, err := idempotency.NewRedisStore(rootCtx, cfg.Redis.URL, cfg.Idempotency.TTL)
		if err != nil {
			lg.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		idem = rs
		gens = services.NewRedisGenerations(rs.Client(), generationKeyTTL(cfg.Cache.PageTTL))
		checkers = append(checkers, rs)
		closers = append(closers, rs.Close)
		lg.Info("redis_connected")
	} else {
		idem = idempotency.NewMemoryStore(cfg.Idempotency.MemorySize, cfg.Idempotency.TTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	cacheSize := cfg.Cache.PageSize
	if gens == nil && cfg.Storage.Driver == config.StoragePostgres {
		// 没有 Redis 时代数只在本进程，多个实例共用数据库会读到旧页
		lg.Warn("comment page cache disabled: postgres storage without redis")
		cacheSize = 0
	}
	pageCache, err := services.NewPageCache(cacheSize, cfg.Cache.PageTTL, gens, m)
	if err != nil {
		lg.Error("page_cache_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	r := router.New(router.Deps{
		Config:      cfg,
		Logger:      lg,
		Votes:       services.NewVoteLedger(repos, repos, m),
		Comments:    services.NewCommentStore(repos, repos, cfg.Limits, pageCache, m),
		Identity:    identity.Chain{identity.NewJWTVerifier(cfg.Auth.JWTSecret), identity.SessionProvider{}},
		Idempotency: idem,
		Metrics:     m,
		Gatherer:    reg,
		Checkers:    checkers,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		lg.Info("http_listen_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-rootCtx.Done():
		lg.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			lg.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http_force_stop", slog.String("err", err.Error()))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			lg.Warn("close_failed", slog.String("err", err.Error()))
		}
	}
	lg.Info("service_stopped")
}

// generationKeyTTL 代数键的存活时间，必须远长于缓存页的 TTL。
func generationKeyTTL(pageTTL time.Duration) time.Duration {
	return max(24*time.Hour, 4*pageTTL)
}
