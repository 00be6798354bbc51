package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"transaction-recon/internal/config"
	handler "transaction-recon/internal/handlers"
	"transaction-recon/internal/lifecycle"
	"transaction-recon/internal/matcher"
	"transaction-recon/internal/models"
	"transaction-recon/internal/notify"
	"transaction-recon/internal/parser"
	"transaction-recon/internal/repository"
	"transaction-recon/internal/retry"
	"transaction-recon/internal/routes"
	"transaction-recon/internal/transport"
	"transaction-recon/internal/validator"
	"transaction-recon/pkg/logger"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.GetLogger().Info("No .env file found, relying on system env")
	}
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.WithError(err).Fatal("connecting to database failed")
	}

	if err := db.AutoMigrate(
		&models.TransactionRecon{},
		&models.TransactionReconMatched{},
		&models.LedgerEntry{},
		&models.PaymentQueueEntry{},
		&models.Payment{},
		&models.IgnoredStatusPayment{},
		&models.ProcessedFile{},
		&models.SystemDetail{},
		&models.MailDetail{},
		&models.PaymentReconSystem{},
	); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}

	store := repository.NewGormStore(db)
	notifier := notify.NewLogNotifier()
	tracker := retry.NewTracker(cfg.RetryThreshold)

	m := matcher.New(cfg, store)
	v := validator.New(cfg, store)
	strategy := lifecycle.NewStrategy(cfg)
	ctrl := lifecycle.NewController(cfg, parser.NewRegistry(), v, m, store, notifier, strategy)
	watcher := lifecycle.NewWatcher(cfg, ctrl)
	rescanner := lifecycle.NewRescanner(cfg, store, m, tracker, notifier)
	delivery := transport.NewDelivery(cfg, &transport.LocalClient{}, store, tracker, notifier)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, handler.NewOpsHandler(cfg, ctrl, rescanner, store))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return rescanner.Run(ctx) })
	g.Go(func() error { return delivery.Run(ctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.WithField("addr", cfg.ListenAddr).Info("reconciliation daemon started")

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("daemon stopped")
	}

	// let in-flight files finish before exiting
	ctrl.Wait()
	log.Info("shutdown complete")
}
