package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/artbooking/api"
	"github.com/Domenick1991/artbooking/config"
	"github.com/Domenick1991/artbooking/internal/auth"
	"github.com/Domenick1991/artbooking/internal/service/booking"
	"github.com/Domenick1991/artbooking/internal/service/notification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Services are the use cases and gateway adapters exposed over HTTP.
// Intents, Webhooks and Events are optional.
type Services struct {
	Bookings      booking.BookingUseCase
	Notifications notification.NotificationUseCase
	Intents       api.IntentCreator
	Webhooks      api.WebhookParser
	Events        api.EventDeduper
	Health        func(ctx context.Context) error
}

// Run serves the HTTP API and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, svc Services) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(cfg, logger, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func NewRouter(cfg *config.Config, logger *zap.Logger, svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), api.RateLimit(cfg.HTTP.RequestsPerMinute, logger))
	router.Use(cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))

	router.GET("/healthz", func(c *gin.Context) {
		if svc.Health != nil {
			if err := svc.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/bookings.swagger.json"))))
	}

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret)
	v1 := router.Group("/api/v1")

	// Gateway callbacks authenticate with their own secrets.
	api.NewPaymentHandler(svc.Bookings, cfg.Payments.CallbackSecret, svc.Webhooks, svc.Events, logger).
		Register(v1.Group("/payments"))

	protected := v1.Group("", authenticator.Middleware())
	api.NewBookingHandler(svc.Bookings, svc.Intents).Register(protected.Group("/bookings"))
	api.NewNotificationHandler(svc.Notifications).Register(protected.Group("/notifications"))

	return router
}

// BookingPolicy converts the booking section of the config into engine policy.
func BookingPolicy(cfg config.BookingConfig) booking.Policy {
	return booking.Policy{
		CreationBuffer:   cfg.CreationBuffer(),
		AcceptanceBuffer: cfg.AcceptanceBuffer(),
		StoreTimeout:     cfg.StoreTimeout(),
		AdvancePercent:   cfg.AdvancePercent,
		DefaultCurrency:  cfg.DefaultCurrency,
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
