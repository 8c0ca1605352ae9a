package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/artbooking/config"
	"github.com/Domenick1991/artbooking/internal/bootstrap"
	"github.com/Domenick1991/artbooking/internal/cache"
	"github.com/Domenick1991/artbooking/internal/contract"
	"github.com/Domenick1991/artbooking/internal/email"
	"github.com/Domenick1991/artbooking/internal/kafka"
	"github.com/Domenick1991/artbooking/internal/logger"
	"github.com/Domenick1991/artbooking/internal/notify"
	"github.com/Domenick1991/artbooking/internal/payment"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/Domenick1991/artbooking/internal/service/notification"
	"github.com/Domenick1991/artbooking/internal/tasks"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg.Database)
	if err != nil {
		lg.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	var notifier booking.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			lg.Warn("kafka is not reachable yet", zap.Error(err))
		}
		notifier = kafka.NewNotificationEmitter(producer, cfg.Kafka.NotificationsTopic)
	} else {
		notifier = notify.NewDeliverer(stores.Notifications, email.NewSender(lg), lg)
	}
	dispatcher := booking.NewDispatcher(notifier, lg, cfg.Booking.DispatchTimeout())

	opts := []booking.BookingServiceOption{
		booking.WithContinuationIssuer(booking.RedirectIssuer{Template: cfg.Payments.SuccessRedirectURL}),
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			lg.Warn("redis is not reachable yet", zap.Error(err))
		}
		opts = append(opts, booking.WithCache(redisCache))

		taskClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.TasksDB,
		})
		defer taskClient.Close()
		opts = append(opts, booking.WithReminders(tasks.NewScheduler(taskClient, cfg.Booking.ReminderLead(), lg)))
	}

	if cfg.Contracts.Enabled() {
		renderer, err := contract.NewCloudinaryRenderer(cfg.Contracts.CloudName, cfg.Contracts.APIKey, cfg.Contracts.APISecret, cfg.Contracts.Folder)
		if err != nil {
			lg.Fatal("init contract renderer", zap.Error(err))
		}
		opts = append(opts, booking.WithContractRenderer(renderer))
	}

	bookingService := booking.NewBookingService(stores.Bookings, dispatcher, bootstrap.BookingPolicy(cfg.Booking), lg, opts...)
	defer bookingService.Close()

	services := bootstrap.Services{
		Bookings:      bookingService,
		Notifications: notification.NewNotificationService(stores.Notifications),
		Health:        stores.Ping,
	}
	if cfg.Payments.StripeSecretKey != "" {
		gateway := payment.NewStripeGateway(cfg.Payments.StripeSecretKey, cfg.Payments.StripeWebhookSecret)
		services.Intents = gateway
		services.Webhooks = gateway
	}
	if redisCache != nil {
		services.Events = redisCache
	}

	if err := bootstrap.Run(ctx, cfg, lg, services); err != nil {
		lg.Error("server error", zap.Error(err))
	}
}
