package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rogerio-castellano/product-catalog/internal/config"
	"github.com/rogerio-castellano/product-catalog/internal/db"
	"github.com/rogerio-castellano/product-catalog/internal/decision"
	api "github.com/rogerio-castellano/product-catalog/internal/http"
	"github.com/rogerio-castellano/product-catalog/internal/redissvc"
	"github.com/rogerio-castellano/product-catalog/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	bucketKeyPrefix = "catalog:"
)

// Server owns the long-lived resources of the process.
type Server struct {
	cfg     config.Config
	logger  *zap.Logger
	db      *sql.DB
	redis   *redissvc.RedisService
	handler http.Handler
}

// New connects to the stores and builds the HTTP handler. Nothing listens until Run.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: logger}

	proxies, err := decision.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	s.db = database

	var scripter redis.Scripter
	if cfg.RedisAddr != "" {
		rs, err := redissvc.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = rs
		scripter = rs.Rdb()
	}

	s.handler = api.NewRouter(api.Dependencies{
		Products:       repo.NewPostgresProductRepository(database),
		Protector:      NewProtector(cfg, proxies, scripter, logger),
		Logger:         logger,
		StaticDir:      cfg.StaticDir,
		Env:            cfg.Env,
		Production:     cfg.IsProduction(),
		TrustedProxies: proxies,
	})
	return s, nil
}

// NewProtector picks the remote decision service when one is configured and the
// local engine otherwise. Buckets live in Redis when rdb is non-nil.
func NewProtector(cfg config.Config, proxies decision.TrustedProxies, rdb redis.Scripter, logger *zap.Logger) decision.Protector {
	if cfg.Decision.URL != "" {
		logger.Info("using remote decision service", zap.String("url", cfg.Decision.URL))
		return decision.NewClient(decision.ClientConfig{
			URL:     cfg.Decision.URL,
			Key:     cfg.Decision.Key,
			Timeout: cfg.Decision.Timeout,
			Proxies: proxies,
		}, logger)
	}

	var store decision.BucketStore
	if rdb != nil {
		store = decision.NewRedisBucketStore(rdb, bucketKeyPrefix)
		logger.Info("rate limit buckets in redis")
	} else {
		store = decision.NewMemoryBucketStore()
		logger.Info("rate limit buckets in memory")
	}

	return decision.NewEngine(logger, proxies,
		decision.NewShieldRule(),
		decision.NewBotRule(net.DefaultResolver),
		decision.NewTokenBucketRule(decision.Bucket{
			Capacity: cfg.RateLimit.Capacity,
			Refill:   cfg.RateLimit.Refill,
			Interval: cfg.RateLimit.Interval,
		}, store),
	)
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run ensures the schema and serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	if err := db.EnsureSchema(ctx, s.db); err != nil {
		return fmt.Errorf("could not initialize schema: %w", err)
	}
	s.logger.Info("products table ready")

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", s.cfg.Env),
			zap.String("static_dir", s.cfg.StaticDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
