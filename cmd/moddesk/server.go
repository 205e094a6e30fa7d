package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/cachestore"
	"github.com/socialdesk/moddesk/automod/collab"
	"github.com/socialdesk/moddesk/automod/countstore"
	"github.com/socialdesk/moddesk/automod/engine"
	"github.com/socialdesk/moddesk/automod/flagstore"
	"github.com/socialdesk/moddesk/automod/notify"
	"github.com/socialdesk/moddesk/automod/setstore"
	"github.com/socialdesk/moddesk/automod/store"
	"github.com/socialdesk/moddesk/workflow"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Server struct {
	echo           *echo.Echo
	httpd          *http.Server
	db             *gorm.DB
	logger         *slog.Logger
	engine         *engine.Engine
	rules          *store.RuleStore
	directory      *collab.GormDirectory
	workflows      *workflow.Manager
	rdb            *redis.Client
	processTimeout time.Duration
}

type Config struct {
	Logger          *slog.Logger
	Bind            string
	RedisURL        string
	SetsFileJSON    string
	SlackWebhookURL string
	AdminToken      string
	ReviewerRoles   []string
	ProcessTimeout  time.Duration
	RoleCacheTTL    time.Duration
	// zero picks a fraction of RoleCacheTTL
	UnknownUserTTL  time.Duration
	QuotaBanDay     int
	QuotaRemoveDay  int
	// requests per second per client IP; zero disables
	APIRateLimit float64
	// HTTP request metrics; prometheus.DefaultRegisterer if nil
	MetricsRegisterer prometheus.Registerer
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.RoleCacheTTL == 0 {
		config.RoleCacheTTL = 30 * time.Minute
	}
	if config.MetricsRegisterer == nil {
		config.MetricsRegisterer = prometheus.DefaultRegisterer
	}
	if config.ProcessTimeout == 0 {
		config.ProcessTimeout = 10 * time.Second
	}

	rules, err := store.NewRuleStore(db)
	if err != nil {
		return nil, err
	}
	recorder, err := audit.NewGormRecorder(db)
	if err != nil {
		return nil, err
	}
	dir, err := collab.NewGormDirectory(db)
	if err != nil {
		return nil, err
	}
	wfStore, err := workflow.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		} else {
			logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
		}
	}

	var counters countstore.CountStore
	var cache cachestore.RoleCache
	var flags flagstore.FlagStore
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

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisRoleCache(config.RedisURL, config.RoleCacheTTL, config.UnknownUserTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis role cache: %v", err)
		}
		cache = csh

		flg, err := flagstore.NewRedisFlagStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis flagstore: %v", err)
		}
		flags = flg
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemRoleCache(5_000, config.RoleCacheTTL, config.UnknownUserTTL)
		flags = flagstore.NewMemFlagStore()
	}

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		notifier = notify.NewSlackNotifier(config.SlackWebhookURL, logger)
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	eng := engine.Engine{
		Logger:   logger,
		Rules:    rules,
		Content:  dir,
		Users:    dir,
		Notifier: notifier,
		Counters: counters,
		Sets:     sets,
		Cache:    cache,
		Flags:    flags,
		Recorder: recorder,
		Config: engine.EngineConfig{
			QuotaBanDay:    config.QuotaBanDay,
			QuotaRemoveDay: config.QuotaRemoveDay,
		},
	}

	srv := &Server{
		db:        db,
		logger:    logger,
		engine:    &eng,
		rules:     rules,
		directory: dir,
		workflows: &workflow.Manager{
			Store: wfStore,
			// role lookups go through the engine's cache
			Roles:         &eng,
			Content:       dir,
			Logger:        logger.With("component", "workflow"),
			ReviewerRoles: config.ReviewerRoles,
		},
		rdb:            rdb,
		processTimeout: config.ProcessTimeout,
	}

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	e := echo.New()
	srv.echo = e
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "moddesk",
		Registerer: config.MetricsRegisterer,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))
	if config.APIRateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(config.APIRateLimit))))
	}

	e.GET("/_health", srv.HandleHealthCheck)

	api := e.Group("/v1")
	if config.AdminToken != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return key == config.AdminToken, nil
		}))
	}
	api.GET("/rules", srv.HandleListRules)
	api.POST("/rules", srv.HandleCreateRule)
	api.POST("/rules/validate", srv.HandleValidateRule)
	api.GET("/rules/:id", srv.HandleGetRule)
	api.PUT("/rules/:id", srv.HandleUpdateRule)
	api.DELETE("/rules/:id", srv.HandleDeleteRule)
	api.POST("/rules/:id/activate", srv.HandleSetRuleActive(true))
	api.POST("/rules/:id/deactivate", srv.HandleSetRuleActive(false))
	api.GET("/rules/:id/statistics", srv.HandleRuleStatistics)
	api.GET("/statistics", srv.HandleRuleStatistics)
	api.GET("/actions", srv.HandleListActions)

	api.PUT("/content/:id", srv.HandlePutContent)
	api.POST("/content/:id/process", srv.HandleProcessContent)
	api.PUT("/users/:id", srv.HandlePutUser)

	api.GET("/flags", srv.HandleListFlags)
	api.POST("/flags/clear", srv.HandleClearFlags)

	api.GET("/workflows", srv.HandleListWorkflows)
	api.POST("/workflows", srv.HandleSubmitWorkflow)
	api.GET("/workflows/:id", srv.HandleGetWorkflow)
	api.POST("/workflows/:id/assign", srv.HandleAssignWorkflow)
	api.POST("/workflows/:id/approve", srv.HandleApproveWorkflow)
	api.POST("/workflows/:id/reject", srv.HandleRejectWorkflow)
	api.POST("/workflows/:id/complete", srv.HandleCompleteWorkflow)

	return srv, nil
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
	srv.logger.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		// Shut down the HTTP server
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}

		// Trigger the return that causes an exit.
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if srv.rdb != nil {
		defer srv.rdb.Close()
	}
	return srv.httpd.Shutdown(ctx)
}
