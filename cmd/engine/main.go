// The engine service is the whole backend in one binary: challenge
// catalog, sandboxed grading, XP progression and the leaderboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	challengectl "codequest/internal/challenge/controller"
	challengerepo "codequest/internal/challenge/repository"
	challengesvc "codequest/internal/challenge/service"
	"codequest/internal/common/cache"
	"codequest/internal/common/db"
	commonmw "codequest/internal/common/http/middleware"
	"codequest/internal/common/mq"
	"codequest/internal/common/storage"
	"codequest/internal/executor"
	sandboxengine "codequest/internal/executor/engine"
	"codequest/internal/grader"
	"codequest/internal/leaderboard"
	leaderboardctl "codequest/internal/leaderboard/controller"
	"codequest/internal/metrics"
	"codequest/internal/progression"
	submissionctl "codequest/internal/submission/controller"
	submissionrepo "codequest/internal/submission/repository"
	submissionsvc "codequest/internal/submission/service"
	userctl "codequest/internal/user/controller"
	userrepo "codequest/internal/user/repository"
	usersvc "codequest/internal/user/service"
	"codequest/pkg/utils/logger"
)

const defaultConfigPath = "configs/engine.yaml"

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

	ctx := context.Background()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var objStorage storage.ObjectStorage
	if appCfg.MinIO.Endpoint != "" {
		minioStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(ctx, "init minio failed", zap.Error(err))
			return
		}
		if appCfg.Submission.ArchiveBucket == "" {
			appCfg.Submission.ArchiveBucket = appCfg.MinIO.Bucket
		}
		if err := minioStorage.EnsureBucket(ctx, appCfg.Submission.ArchiveBucket); err != nil {
			logger.Error(ctx, "ensure archive bucket failed", zap.Error(err))
			return
		}
		objStorage = minioStorage
	}

	var mqClient mq.MessageQueue
	if len(appCfg.Kafka.Brokers) > 0 {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.toKafkaConfig())
		if err != nil {
			logger.Error(ctx, "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
	}

	metrics.Register()

	// Challenge catalog.
	challengeRepo := challengerepo.NewChallengeRepository(mysqlDB, redisCache)
	challengeService := challengesvc.NewChallengeService(challengeRepo, appCfg.Challenge.PackPath)
	if err := challengeService.Seed(ctx); err != nil {
		logger.Error(ctx, "seed challenges failed", zap.Error(err))
		return
	}

	// Sandbox and grading.
	eng, err := sandboxengine.NewEngine(appCfg.Sandbox)
	if err != nil {
		logger.Error(ctx, "init sandbox engine failed", zap.Error(err))
		return
	}
	runner := executor.NewRunner(eng, executor.DefaultLanguages(), appCfg.Runner)
	codeGrader := grader.NewGrader(runner)

	// Accounts.
	userRepo := userrepo.NewUserRepository(mysqlDB, redisCache)
	authService := usersvc.NewAuthService(userRepo, usersvc.AuthConfig{
		JWTSecret:      []byte(appCfg.Auth.JWTSecret),
		JWTIssuer:      appCfg.Auth.JWTIssuer,
		AccessTokenTTL: appCfg.Auth.AccessTokenTTL,
	})

	// Progression and leaderboard.
	var producer mq.Producer
	if mqClient != nil {
		producer = mqClient
	}
	ledger := progression.NewLedger(mysqlDB, producer, appCfg.Progression)
	index := leaderboard.NewIndex(redisCache, appCfg.Progression.LevelStep)
	if mqClient != nil {
		consumer := leaderboard.NewConsumer(mqClient, index)
		if err := consumer.Subscribe(ctx); err != nil {
			logger.Error(ctx, "subscribe xp events failed", zap.Error(err))
			return
		}
		if err := mqClient.Start(); err != nil {
			logger.Error(ctx, "start message queue failed", zap.Error(err))
			return
		}
	}

	rebuildCtx, stopRebuild := context.WithCancel(ctx)
	defer stopRebuild()
	rebuilder := leaderboard.NewRebuilder(mysqlDB, index, appCfg.Leaderboard.RebuildInterval)
	go rebuilder.Run(rebuildCtx)

	// Submission pipeline.
	subRepo := submissionrepo.NewSubmissionRepository(mysqlDB)
	submissionService := submissionsvc.NewSubmissionService(
		challengeService, codeGrader, ledger, runner, userRepo, subRepo, objStorage, appCfg.Submission)

	httpServer := buildHTTPServer(appCfg, redisCache, authService,
		challengectl.NewChallengeController(challengeService),
		userctl.NewAuthController(authService),
		submissionctl.NewSubmissionController(submissionService),
		leaderboardctl.NewLeaderboardController(index),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "engine http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopRebuild()
	shutdownTimeout, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownTimeout); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
}

func buildHTTPServer(
	cfg *AppConfig,
	redisCache cache.Cache,
	verifier commonmw.TokenVerifier,
	challenges *challengectl.ChallengeController,
	auth *userctl.AuthController,
	submissions *submissionctl.SubmissionController,
	board *leaderboardctl.LeaderboardController,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	maxAge := ""
	if cfg.CORS.MaxAge > 0 {
		maxAge = fmt.Sprintf("%d", int(cfg.CORS.MaxAge.Seconds()))
	}
	router.Use(commonmw.CORSMiddleware(commonmw.CORSConfig{
		Enabled:          cfg.CORS.Enabled,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           maxAge,
	}))
	router.Use(requestLogger())
	router.Use(metrics.Middleware())

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/readyz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)
	api.GET("/challenges", challenges.List)
	api.GET("/challenges/:id", challenges.Get)
	api.GET("/leaderboard", board.Top)

	authed := api.Group("")
	authed.Use(commonmw.AuthMiddleware(verifier))
	authed.GET("/user/profile", auth.Profile)
	authed.GET("/leaderboard/me", board.Rank)
	authed.GET("/submissions", submissions.History)

	limiter := commonmw.NewRateLimiter(redisCache)
	submit := authed.Group("/submit")
	submit.Use(commonmw.RateLimitMiddleware(limiter, "submit",
		cfg.RateLimit.IPMax, cfg.RateLimit.UserMax, cfg.RateLimit.Window))
	submit.POST("/code", submissions.SubmitCode)
	submit.POST("/multiple-choice", submissions.SubmitChoice)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
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
