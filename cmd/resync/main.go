package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"

	"optionbooking/config"
	"optionbooking/internal/adapters/email"
	"optionbooking/internal/cache"
	"optionbooking/internal/domain"
	"optionbooking/internal/repository/postgres"
	"optionbooking/internal/services"
)

// Re-ranks an option's answers after a capacity change, from the command
// line. Evicted users are notified through the configured mailer.
func main() {
	optionID := flag.String("option", "", "option ID to resync (required)")
	maxAnswers := flag.Int("max-answers", 0, "new primary seat count")
	maxOverbooking := flag.Int("max-overbooking", 0, "new waiting list size")
	limitAnswers := flag.Bool("limit", true, "enforce the capacity limits")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := config.NewLogger()

	if *optionID == "" {
		logger.Error("missing -option flag")
		flag.Usage()
		os.Exit(2)
	}
	if *maxAnswers < 0 || *maxOverbooking < 0 {
		logger.Error("capacity values must not be negative")
		os.Exit(2)
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}

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

	userRepo := postgres.NewUserRepository(db)
	optionRepo := postgres.NewOptionRepository(db)
	txRunner := postgres.NewAnswerTxRunner(db, cfg.SubmitMaxRetries)

	notifications := services.NewNotificationService(mailer, email.NewTemplateRenderer())
	sink := services.NewFanoutSink(
		services.NewMetricsSink(),
		services.NewNotificationSink(userRepo, optionRepo, notifications, logger),
	)
	promoter := services.NewWaitlistPromoter(txRunner, services.NewCapacityLedger(), sink,
		cache.New[string, domain.OptionAvailability](), time.Now, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	option, err := optionRepo.UpdateCapacity(ctx, *optionID, *maxAnswers, *maxOverbooking, *limitAnswers, time.Now())
	if err != nil {
		logger.Error("failed to update capacity", "option_id", *optionID, "err", err)
		os.Exit(1)
	}

	result, err := promoter.Resync(ctx, option)
	if err != nil {
		logger.Error("resync failed", "option_id", *optionID, "err", err)
		os.Exit(1)
	}
	logger.Info("resync finished",
		"option_id", option.ID,
		"max_answers", option.MaxAnswers,
		"max_overbooking", option.MaxOverbooking,
		"booked", result.Booked,
		"waiting", result.Waiting,
		"evicted", result.Evicted,
	)
}
