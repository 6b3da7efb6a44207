package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/castmod/castmod/automod/cachestore"
	"github.com/castmod/castmod/automod/channelstore"
	"github.com/castmod/castmod/automod/countstore"
	"github.com/castmod/castmod/automod/engine"
	"github.com/castmod/castmod/automod/farcaster"
	"github.com/castmod/castmod/automod/markerstore"
	"github.com/castmod/castmod/automod/modlog"
	"github.com/castmod/castmod/sweep"
	"github.com/castmod/castmod/util"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	sweeper  *sweep.Sweeper
	channels channelstore.Store
	echo     *echo.Echo
	httpd    *http.Server
	rdb      *redis.Client
}

type Config struct {
	Logger         *slog.Logger
	RedisURL       string
	NeynarHost     string
	NeynarAPIKey   string
	WarpcastHost   string
	WarpcastAPIKey string
	Bind           string
	AdminPassword  string
	ReadOnly       bool
	SweepWindow    time.Duration
	SweepOptions   sweep.Options
}

// NewServer wires the engine, stores and upstream clients. The database holds channel configs and the moderation
// log; redis, when configured, holds everything short-lived.
func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	modLog := modlog.NewGormLog(db)
	if err := modLog.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating moderation log: %w", err)
	}
	channels := channelstore.NewGormStore(db)
	if err := channels.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating channel store: %w", err)
	}

	window := config.SweepWindow
	if window <= 0 {
		window = markerstore.DefaultWindow
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var markers markerstore.MarkerStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		counters = countstore.NewRedisCountStore(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, 30*time.Minute)
		markers = markerstore.NewRedisMarkerStore(rdb, window)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		markers = markerstore.NewMemMarkerStore(window)
	}

	if config.ReadOnly {
		logger.Info("running in read-only mode: no moderation actions will be taken")
	}
	warpcast := farcaster.NewWarpcastClient(config.WarpcastHost, config.WarpcastAPIKey, util.RobustHTTPClient(logger))
	eng := &engine.Engine{
		Logger:   logger.With("source", "engine"),
		Platform: warpcast,
		Cohosts:  warpcast,
		Log:      modLog,
		Counters: counters,
		Cache:    cache,
		ReadOnly: config.ReadOnly,
	}

	neynar := farcaster.NewNeynarClient(config.NeynarHost, config.NeynarAPIKey, util.RobustHTTPClient(logger))
	sweeper := sweep.NewSweeper(eng, neynar, markers, &config.SweepOptions)
	sweeper.Logger = logger.With("source", "sweeper")

	srv := newServer(logger, eng, sweeper, channels, config)
	srv.rdb = rdb
	return srv, nil
}

func newServer(logger *slog.Logger, eng *engine.Engine, sweeper *sweep.Sweeper, channels channelstore.Store, config Config) *Server {
	e := echo.New()

	srv := &Server{
		logger:   logger,
		engine:   eng,
		sweeper:  sweeper,
		channels: channels,
		echo:     e,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   1 * time.Minute,
		ReadTimeout:    1 * time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(httpMetrics())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(srv.adminAuthMiddleware(config.AdminPassword))

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/definitions", srv.HandleDefinitions)
	e.GET("/channels", srv.HandleListChannels)
	e.GET("/channels/:id", srv.HandleGetChannel)
	e.PUT("/channels/:id", srv.HandlePutChannel)
	e.POST("/channels/:id/evaluate", srv.HandleEvaluate)
	e.GET("/channels/:id/sweep", srv.HandleSweepStatus)
	e.POST("/channels/:id/sweep", srv.HandleSweep)
	e.GET("/channels/:id/log", srv.HandleModerationLog)

	return srv
}

// request metrics register on the default prometheus registry, which only takes them once per process
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("castmod")
})

// HTTP Basic auth with username "admin" and a static password, on everything but the health check
func (srv *Server) adminAuthMiddleware(password string) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/_health"
		},
		Validator: func(username, pass string, c echo.Context) (bool, error) {
			if password != "" &&
				subtle.ConstantTimeCompare([]byte(username), []byte("admin")) == 1 &&
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1 {
				return true, nil
			}
			srv.logger.Warn("auth failed", "username", username)
			return false, nil
		},
	})
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exitSignals
	srv.logger.Info("received OS exit signal", "signal", sig)

	if err := srv.Shutdown(); err != nil {
		srv.logger.Error("shutdown error", "err", err)
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Shutdown stops taking requests, then gives running sweeps a bounded amount of time to finish.
func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	if err := srv.httpd.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer sweepCancel()
	if err := srv.sweeper.Shutdown(sweepCtx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for sweeps: %w", err))
	}

	if srv.rdb != nil {
		if err := srv.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
