package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/artbooking/config"
	"github.com/Domenick1991/artbooking/internal/bootstrap"
	"github.com/Domenick1991/artbooking/internal/email"
	"github.com/Domenick1991/artbooking/internal/kafka"
	"github.com/Domenick1991/artbooking/internal/logger"
	"github.com/Domenick1991/artbooking/internal/notify"
	"github.com/Domenick1991/artbooking/internal/tasks"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The worker delivers notifications published by the API process and fires
// event reminders queued in asynq.
func main() {
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

	deliverer := notify.NewDeliverer(stores.Notifications, email.NewSender(lg), lg)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, lg)
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, deliverer.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("consumer stopped", zap.Error(err))
				stop()
			}
		}()
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.TasksDB},
		asynq.Config{Concurrency: cfg.Worker.Concurrency},
	)
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeEventReminder, tasks.NewReminderHandler(deliverer, stores.Bookings, lg))

	if err := server.Start(mux); err != nil {
		lg.Fatal("start task server", zap.Error(err))
	}
	lg.Info("worker started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Int("concurrency", cfg.Worker.Concurrency))

	<-ctx.Done()
	lg.Info("shutting down worker")
	server.Shutdown()
}
