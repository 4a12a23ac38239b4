package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lendhub/repayment-engine/internal/config"
	"github.com/lendhub/repayment-engine/internal/repository"
	"github.com/lendhub/repayment-engine/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	loanService := service.NewLoanService(loanRepo, paymentRepo, redisClient, cfg, log)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone: %v", err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	if err := setupCronJobs(c, cfg, loanService, log); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	c.Start()
	log.Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, loanService *service.LoanService, log *logrus.Logger) error {
	// Daily pass that re-derives loan statuses from recorded payments.
	_, err := c.AddFunc(cfg.Scheduler.StatusRefreshSpec, func() {
		refreshStatuses(loanService, log)
	})
	if err != nil {
		return err
	}

	// Reminder pass for installments due soon or already overdue.
	_, err = c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		logUpcomingInstallments(loanService, cfg.Scheduler.ReminderDays, log)
	})
	return err
}

func refreshStatuses(loanService *service.LoanService, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	changed, err := loanService.RefreshStatuses(ctx)
	if err != nil {
		log.WithError(err).Error("loan status refresh failed")
		return
	}
	log.WithField("changed", changed).Info("loan status refresh complete")
}

func logUpcomingInstallments(loanService *service.LoanService, withinDays int, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	due, err := loanService.DueWithin(ctx, withinDays)
	if err != nil {
		log.WithError(err).Error("reminder scan failed")
		return
	}

	for loanID, entry := range due {
		log.WithFields(logrus.Fields{
			"loan_id":     loanID,
			"installment": entry.InstallmentNumber,
			"due_date":    entry.DueDate.Format("2006-01-02"),
			"amount":      entry.Amount.String(),
			"status":      entry.Status,
		}).Info("installment payment due")
	}
}
