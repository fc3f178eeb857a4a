package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/corptransit/transport-request-backend/internal/config"
	"github.com/corptransit/transport-request-backend/internal/database"
	"github.com/corptransit/transport-request-backend/internal/handlers"
	"github.com/corptransit/transport-request-backend/internal/middleware"
	"github.com/corptransit/transport-request-backend/internal/observability"
	"github.com/corptransit/transport-request-backend/internal/realtime"
	"github.com/corptransit/transport-request-backend/internal/services"
	"github.com/corptransit/transport-request-backend/pkg/jwt"
	"github.com/corptransit/transport-request-backend/pkg/mailer"
	"github.com/corptransit/transport-request-backend/pkg/sms"
	"github.com/corptransit/transport-request-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Transport Request Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize repositories
	employeeRepo := database.NewEmployeeRepository(db)
	driverRepo := database.NewDriverRepository(db)
	vehicleRepo := database.NewVehicleRepository(db)
	tripRepo := database.NewTripRequestRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	emailValidator := validator.NewEmailValidator(cfg.Signup.AllowedEmailDomain)
	signupService := services.NewSignupService(
		db,
		employeeRepo,
		emailValidator,
		time.Duration(cfg.Signup.OTPExpiryMinutes)*time.Minute,
		cfg.Signup.OTPMaxAttempts,
		cfg.Security.BcryptCost,
	)
	rateLimitService := services.NewRateLimitService(
		db,
		cfg.RateLimit.Requests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
	)
	auditService := services.NewAuditService(db, cfg.Security.EnableAuditLog)

	// Outbound email: dev mode logs instead of sending
	var outboundMailer mailer.Mailer
	if cfg.SMTP.Mode == "production" {
		logger.Info("SMTP mailer in production mode")
		outboundMailer = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		logger.Info("SMTP mailer in development mode (emails are logged, not sent)")
		outboundMailer = mailer.NewLogMailer(logger)
	}

	// SMS gateway: dev mode logs instead of sending
	var smsGateway sms.Gateway
	if cfg.SMS.Mode == "production" {
		logger.Info("Twilio SMS gateway in production mode")
		smsGateway = sms.NewTwilioGateway(sms.TwilioConfig{
			APIURL:     cfg.SMS.APIURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
		})
	} else {
		logger.Info("SMS gateway in development mode (no actual SMS will be sent)")
		smsGateway = sms.NewLogGateway(logger)
	}

	notificationService := services.NewNotificationService(
		outboundMailer,
		smsGateway,
		logger,
		cfg.SMTP.TransportHeadEmail,
	)

	// Realtime hub; origin check reuses the CORS allowlist
	hub := realtime.NewHub(logger, websocketOriginChecker(cfg.CORS.AllowedOrigins))

	// Initialize and start cron service
	cronService := services.NewCronService(tripRepo, signupService, rateLimitService, hub, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Cron service started")

	logger.Info("Services initialized")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		employeeRepo,
		signupService,
		notificationService,
		auditService,
		jwtService,
		logger,
		cfg.Signup.OTPExpiryMinutes,
		cfg.Security.CookieSecure,
	)
	driverHandler := handlers.NewDriverHandler(driverRepo, hub, auditService, logger)
	vehicleHandler := handlers.NewVehicleHandler(vehicleRepo, hub, auditService, logger)
	tripHandler := handlers.NewTripRequestHandler(tripRepo, hub, notificationService, auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(observability.RequestMetrics())

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check and metrics endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		// Public auth routes, rate limited per client IP
		public := api.Group("")
		public.Use(middleware.RateLimitMiddleware(rateLimitService, auditService, logger))
		{
			public.POST("/signup", authHandler.Signup)
			public.POST("/verify-otp", authHandler.VerifyOTP)
			public.POST("/login", authHandler.Login)
		}

		// Session routes (require a valid session cookie)
		session := api.Group("")
		session.Use(middleware.AuthMiddleware(jwtService, employeeRepo))
		{
			session.POST("/logout", authHandler.Logout)
			session.GET("/me", authHandler.Me)

			session.GET("/ws", func(c *gin.Context) {
				hub.HandleConnection(c.Writer, c.Request)
			})

			session.GET("/drivers", driverHandler.List)
			session.GET("/vehicles", vehicleHandler.List)
			session.GET("/tripRequest", tripHandler.List)
			session.POST("/tripRequest", tripHandler.Create)

			// Admin-only fleet and workflow management
			admin := session.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/drivers", driverHandler.Create)
				admin.DELETE("/drivers/:id", driverHandler.Delete)
				admin.PATCH("/drivers/:id/toggleUnavailable", driverHandler.ToggleUnavailable)

				admin.POST("/vehicles", vehicleHandler.Create)
				admin.DELETE("/vehicles/:id", vehicleHandler.Delete)
				admin.PATCH("/vehicles/:id/toggleStatus", vehicleHandler.ToggleStatus)

				admin.POST("/tripRequest/:id/approve", tripHandler.Approve)
				admin.POST("/tripRequest/:id/reject", tripHandler.Reject)
				admin.POST("/tripRequest/:id/complete", tripHandler.Complete)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request completed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// websocketOriginChecker allows same-origin requests plus the CORS allowlist
func websocketOriginChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
