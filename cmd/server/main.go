package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flash-promo-service/internal/awsmsg"
	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/database"
	"flash-promo-service/internal/handlers"
	"flash-promo-service/internal/kafka"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/redis"
	"flash-promo-service/internal/scheduler"
	"flash-promo-service/internal/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	dbMigrateUp      = database.Migrate
	dbMigrateDown    = database.MigrateDown
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	loadAWSConfig    = awsmsg.LoadConfig
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	redis     *redis.Client
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	scheduler *scheduler.Scheduler
	mux       *http.ServeMux
	server    *http.Server
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flash-promo",
		Short:        "Flash promo service: promo lifecycle, notifications and reservations",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(runJobCmd())
	return root
}

func serveCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, Kafka consumer and periodic jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build app: %w", err)
			}
			if !skipMigrations {
				if err := dbMigrateUp(app.db, app.log); err != nil {
					app.close()
					return err
				}
			}
			return app.run()
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on start")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg := loadConfig()
			log := newLogger(&cfg.Logger)
			db, err := dbConnect(&cfg.Database, log)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()

			if direction == "down" {
				return dbMigrateDown(db, log)
			}
			return dbMigrateUp(db, log)
		},
	}
}

func runJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-job <name>",
		Short: "Run one periodic job immediately (activation_scan, expiry_cleanup, queue_drain)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApplication(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build app: %w", err)
			}
			defer app.close()

			return runJob(cmd.Context(), app.scheduler, args[0], cmd.OutOrStdout())
		},
	}
}

// runJob печатает итог одного запуска. Упавшая задача даёт ненулевой код выхода.
func runJob(ctx context.Context, s *scheduler.Scheduler, name string, out io.Writer) error {
	res, err := s.RunOnce(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s (%s) %s\n", res.Job, res.Status, res.Duration.Round(time.Millisecond), res.Summary)
	if res.Error != "" {
		return fmt.Errorf("job %s failed: %s", res.Job, res.Error)
	}
	return nil
}

// run обслуживает HTTP до сигнала остановки.
func (a *application) run() error {
	a.log.Info("Starting flash promo server...")

	if err := a.consumer.Start(); err != nil {
		a.close()
		return fmt.Errorf("kafka consumer start: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			a.close()
			return fmt.Errorf("scheduler start: %w", err)
		}
		a.log.WithField("jobs", a.scheduler.Jobs()).Info("Scheduler started")
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.WithField("address", a.server.Addr).Info("HTTP server starting")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		a.log.Info("Shutting down server...")
	case runErr = <-serverErr:
		a.log.WithError(runErr).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.scheduler.Stop()
	_ = a.consumer.Stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Error("Server forced to shutdown")
	}
	a.closeStores()
	a.log.Info("Server exited")
	return runErr
}

// close освобождает ресурсы приложения, которое не было запущено.
func (a *application) close() {
	if a.consumer != nil {
		_ = a.consumer.Stop()
	}
	a.closeStores()
}

func (a *application) closeStores() {
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication(ctx context.Context) (*application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)
	clk := clock.NewRealClock(clock.LoadLocation(cfg.Promo.Timezone))

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	app := &application{cfg: cfg, log: log, db: db, redis: redisClient, producer: producer, consumer: consumer}

	var awsCfg *aws.Config
	if cfg.Promo.Publisher == publisherSNS || cfg.AWS.QueueURL != "" {
		loaded, err := loadAWSConfig(ctx, &cfg.AWS)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("aws config: %w", err)
		}
		awsCfg = &loaded
	}

	publisher, err := selectPublisher(cfg, producer, awsCfg, log)
	if err != nil {
		app.close()
		return nil, err
	}

	promoService := services.NewPromoService(db, log, clk)
	promoService.SetEventPublisher(producer)
	reservationService := services.NewReservationService(db, promoService, log, clk, &cfg.Promo)
	reservationService.SetEventPublisher(producer)
	dispatchService := services.NewDispatchService(db, promoService, publisher, log, clk, &cfg.Promo)
	statsService := services.NewNotificationStatsService(db, redisClient, log, clk, &cfg.Stats)
	dispatchService.SetStatsCache(statsService)
	rateLimiter := services.NewRateLimiter(redisClient, log, clk, &cfg.RateLimit)

	app.scheduler = scheduler.New(log, redisClient, &cfg.Scheduler)
	registerJobs(app.scheduler, cfg, promoService, dispatchService, awsCfg, log)

	registerEventHandlers(consumer, dispatchService, log)

	promoHandler := handlers.NewPromoHandler(promoService, reservationService, dispatchService, producer, clk, log)
	reservationHandler := handlers.NewReservationHandler(reservationService, log)
	notificationHandler := handlers.NewNotificationHandler(statsService, log, &cfg.Stats)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	healthHandler.SetScheduler(app.scheduler, cfg.Scheduler.Enabled)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	app.mux = setupRoutes(routes{
		promos:        promoHandler,
		reservations:  reservationHandler,
		notifications: notificationHandler,
		health:        healthHandler,
		rateLimit:     rateLimitHandler,
	}, rateLimiter, log)
	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return app, nil
}
