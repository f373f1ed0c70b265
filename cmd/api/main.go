package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mta-academy/academy-api/api/swagger"
	"github.com/mta-academy/academy-api/internal/handler"
	"github.com/mta-academy/academy-api/internal/middleware"
	"github.com/mta-academy/academy-api/internal/models"
	"github.com/mta-academy/academy-api/internal/repository"
	"github.com/mta-academy/academy-api/internal/service"
	"github.com/mta-academy/academy-api/pkg/cache"
	"github.com/mta-academy/academy-api/pkg/config"
	"github.com/mta-academy/academy-api/pkg/database"
	"github.com/mta-academy/academy-api/pkg/jobs"
	"github.com/mta-academy/academy-api/pkg/logger"
	corsmiddleware "github.com/mta-academy/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mta-academy/academy-api/pkg/middleware/requestid"
	"github.com/mta-academy/academy-api/pkg/storage"
)

// @title Academy Management API
// @version 1.0.0
// @description Backend for martial arts academy administration: roster, fees, attendance, belt tests and reporting.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled && cacheRepo != nil)

	studentRepo := repository.NewStudentRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	beltTestRepo := repository.NewBeltTestRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "academy-api",
	})
	studentSvc := service.NewStudentService(studentRepo, attendanceRepo, feeRepo, beltTestRepo, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, validate, logr)
	beltTestSvc := service.NewBeltTestService(beltTestRepo, studentRepo, validate, logr)
	invoiceSvc := service.NewInvoiceService(studentRepo, feeRepo, nil, cfg.Academy.Name, cfg.Academy.LogoPath, validate, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, feeRepo, attendanceRepo, beltTestRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(attendanceRepo, feeRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})

	if cfg.Reports.Enabled {
		reportQueue.Start(ctx)
		defer reportQueue.Stop()
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, feeSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	beltTestHandler := handler.NewBeltTestHandler(beltTestSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("", middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	// download link is authorized by its signed token, not a session
	api.GET("/export/:token", reportHandler.Download)

	protected := api.Group("", middleware.JWT(authSvc))
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	protected.GET("/students", studentHandler.List)
	protected.GET("/students/:id", studentHandler.Get)
	protected.GET("/students/:id/profile", studentHandler.Profile)
	protected.GET("/students/:id/ledger", studentHandler.Ledger)
	protected.GET("/students/:id/attendance", attendanceHandler.History)
	protected.POST("/students", staff, studentHandler.Create)
	protected.PUT("/students/:id", staff, studentHandler.Update)
	protected.DELETE("/students/:id", adminOnly, studentHandler.Delete)
	protected.POST("/students/:id/invoice", staff, invoiceHandler.Generate)
	protected.POST("/students/:id/promote", staff, beltTestHandler.Promote)

	protected.GET("/fees", feeHandler.List)
	protected.GET("/fees/summary", feeHandler.Summary)
	protected.GET("/fees/:id", feeHandler.Get)
	protected.PATCH("/fees/:id/status", staff, feeHandler.UpdateStatus)

	protected.GET("/attendance", attendanceHandler.List)
	protected.POST("/attendance", staff, attendanceHandler.Mark)
	protected.POST("/attendance/bulk", staff, attendanceHandler.BulkMark)

	protected.GET("/belt-tests", beltTestHandler.List)
	protected.GET("/belt-tests/:id", beltTestHandler.Get)
	protected.POST("/belt-tests", staff, beltTestHandler.Schedule)
	protected.PUT("/belt-tests/:id", staff, beltTestHandler.Update)
	protected.PATCH("/belt-tests/:id/result", staff, beltTestHandler.RecordResult)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard", dashboardHandler.Summary)
	}

	if cfg.Reports.Enabled {
		protected.POST("/reports", reportHandler.Create)
		protected.GET("/reports/:id", reportHandler.Status)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
