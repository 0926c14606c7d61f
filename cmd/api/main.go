package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medbook/clinic-api/internal/config"
	"github.com/medbook/clinic-api/internal/email"
	"github.com/medbook/clinic-api/internal/repository/postgres"
	"github.com/medbook/clinic-api/internal/router"
	authservice "github.com/medbook/clinic-api/internal/service/auth"
	"github.com/medbook/clinic-api/internal/service/scheduling"
	userservice "github.com/medbook/clinic-api/internal/service/user"
	"github.com/medbook/clinic-api/internal/ws"
	"github.com/medbook/clinic-api/pkg/logger"
	"github.com/medbook/clinic-api/pkg/messaging"
	messagingredis "github.com/medbook/clinic-api/pkg/messaging/redis"
	"github.com/medbook/clinic-api/pkg/metrics"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)

	m := metrics.NewMetrics("clinic_api")
	zl := log.Zerolog()

	schedulingOpts := []scheduling.Option{scheduling.WithMetrics(m)}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = messagingredis.NewRedisBroker(messagingredis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		defer broker.Close()
		schedulingOpts = append(schedulingOpts, scheduling.WithPublisher(broker))
	}

	if cfg.SMTP.Enabled {
		schedulingOpts = append(schedulingOpts, scheduling.WithNotifier(email.NewService(cfg.SMTP)))
	}

	schedulingService := scheduling.NewService(appointmentRepo, userRepo, scheduling.NewClock(), zl, schedulingOpts...)
	userService := userservice.NewService(userRepo)
	authService := authservice.NewService(userRepo, cfg.JWT)

	hub := ws.NewHub(zl)
	broadcaster := ws.NewBroadcaster(hub, schedulingService, cfg.Broadcast.Interval, zl, m)
	defer broadcaster.Shutdown()

	engine := router.New(router.Dependencies{
		Config:      cfg,
		DB:          db,
		Broker:      broker,
		Scheduling:  schedulingService,
		Users:       userService,
		Auth:        authService,
		Broadcaster: broadcaster,
		Logger:      zl,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "graceful shutdown failed")
	}

	log.Info("server stopped")
}
