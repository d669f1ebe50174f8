package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gradex/internal/common/cache"
	"gradex/internal/common/db"
	commonmw "gradex/internal/common/http/middleware"
	execcontroller "gradex/internal/exec/controller"
	"gradex/internal/exec/queue"
	"gradex/internal/exec/sandbox"
	execservice "gradex/internal/exec/service"
	"gradex/internal/grading"
	gradecontroller "gradex/internal/grading/controller"
	problemrepo "gradex/internal/problem/repository"
	problemservice "gradex/internal/problem/service"
	"gradex/pkg/utils/logger"
)

const defaultConfigPath = "configs/exec_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	sandboxClient := sandbox.NewClient(appCfg.Sandbox, redisCache)

	jobQueue := queue.New(appCfg.Queue, sandboxClient)
	jobQueue.Start()

	runService := execservice.New(appCfg.Exec, jobQueue)
	problemStore := problemrepo.NewProblemRepository(mysqlDB)
	resolver := problemservice.NewResolver(problemStore, redisCache)
	gradeEngine := grading.NewEngine(runService, resolver)

	httpServer := buildHTTPServer(appCfg.Server, runService, gradeEngine)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "exec http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if err := jobQueue.Stop(ctx); err != nil {
		logger.Error(context.Background(), "queue drain incomplete", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, runService *execservice.Service, gradeEngine *grading.Engine) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	execController := execcontroller.NewExecController(runService)
	gradeController := gradecontroller.NewGradeController(gradeEngine)

	router.GET("/healthz", execController.Health)
	api := router.Group("/api/v1/exec")
	api.POST("/run", execController.Run)
	api.POST("/submit", gradeController.Submit)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
