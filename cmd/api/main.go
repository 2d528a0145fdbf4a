package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"optionbooking/config"
	authadapter "optionbooking/internal/adapters/auth"
	"optionbooking/internal/adapters/email"
	"optionbooking/internal/adapters/enrollment"
	"optionbooking/internal/cache"
	httpdelivery "optionbooking/internal/delivery/http"
	"optionbooking/internal/delivery/http/controllers"
	"optionbooking/internal/delivery/http/middleware"
	"optionbooking/internal/domain"
	"optionbooking/internal/repository/postgres"
	"optionbooking/internal/services"
)

// @title Option Booking API
// @version 1.0
// @description Capacity-aware booking with waiting lists, checkout holds, and combination rules.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	instanceRepo := postgres.NewInstanceRepository(db)
	optionRepo := postgres.NewOptionRepository(db)
	answerRepo := postgres.NewAnswerRepository(db)
	ruleRepo := postgres.NewCombinationRuleRepository(db)
	txRunner := postgres.NewAnswerTxRunner(db, cfg.SubmitMaxRetries)

	// Adapters
	hasher := authadapter.NewBcryptHasher(12)
	tokenIssuer := authadapter.NewJWTIssuer(cfg.JWTSecret, cfg.TokenExpiry)
	tokenVerifier := authadapter.NewJWTVerifier(cfg.JWTSecret)
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:             cfg.SESRegion,
			AccessKeyID:        cfg.SESAccessKeyID,
			SecretAccessKey:    cfg.SESSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipVerify,
		},
	})
	if err != nil {
		logger.Error("failed to create mailer", "err", err)
		os.Exit(1)
	}

	// Event sinks
	notifications := services.NewNotificationService(mailer, email.NewTemplateRenderer())
	sinks := []domain.EventSink{
		services.NewMetricsSink(),
		services.NewNotificationSink(userRepo, optionRepo, notifications, logger),
	}
	if cfg.EnrollmentBaseURL != "" {
		client := enrollment.NewHTTPClient(&http.Client{Timeout: 10 * time.Second}, cfg.EnrollmentBaseURL)
		sinks = append(sinks, services.NewEnrollmentSink(client, logger))
		logger.Info("enrollment sync enabled", "base_url", cfg.EnrollmentBaseURL)
	}
	sink := services.NewFanoutSink(sinks...)

	// Services
	clock := time.Now
	ledger := services.NewCapacityLedger()
	availability := cache.New[string, domain.OptionAvailability]()
	promoter := services.NewWaitlistPromoter(txRunner, ledger, sink, availability, clock, logger)
	eligibility := services.NewEligibilityEngine(answerRepo, optionRepo, ruleRepo)
	coordinator := services.NewRegistrationCoordinator(
		optionRepo, instanceRepo, answerRepo, txRunner,
		ledger, promoter, eligibility,
		sink, availability, clock, logger,
	)
	transfers := services.NewTransferCoordinator(coordinator, optionRepo, logger)
	userService := services.NewUserService(userRepo, roleRepo, hasher, tokenIssuer, cfg.TokenExpiry)

	// HTTP
	router := httpdelivery.NewRouter(httpdelivery.Controllers{
		Auth:         controllers.NewAuthController(logger, userService),
		Registration: controllers.NewRegistrationController(logger, coordinator),
		Selection:    controllers.NewSelectionController(logger, eligibility, instanceRepo),
		Options:      controllers.NewOptionController(logger, optionRepo, instanceRepo, ruleRepo, answerRepo, promoter, availability, clock),
		Transfers:    controllers.NewTransferController(logger, transfers),
	}, tokenVerifier, logger)

	var handler http.Handler = router
	handler = middleware.Metrics(handler)
	handler = middleware.LoggingMiddleware(logger, handler)
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Reservation expiry sweep. The engine never schedules this itself.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := coordinator.ReleaseExpiredReservations(sweepCtx, cfg.ReservationTTL); err != nil {
					logger.Error("reservation expiry sweep failed", "err", err)
				}
			}
		}
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	logger.Info("server stopped")
}
