package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-api/internal/config"
	"github.com/medbook/clinic-api/internal/handler"
	appointmenthandler "github.com/medbook/clinic-api/internal/handler/appointment"
	authhandler "github.com/medbook/clinic-api/internal/handler/auth"
	userhandler "github.com/medbook/clinic-api/internal/handler/user"
	wshandler "github.com/medbook/clinic-api/internal/handler/ws"
	"github.com/medbook/clinic-api/internal/middleware"
	"github.com/medbook/clinic-api/internal/model"
	authservice "github.com/medbook/clinic-api/internal/service/auth"
	"github.com/medbook/clinic-api/internal/service/scheduling"
	userservice "github.com/medbook/clinic-api/internal/service/user"
	"github.com/medbook/clinic-api/internal/ws"
	"github.com/medbook/clinic-api/pkg/messaging"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config      *config.Config
	DB          *sqlx.DB
	Broker      messaging.Broker
	Scheduling  *scheduling.Service
	Users       *userservice.Service
	Auth        *authservice.Service
	Broadcaster *ws.Broadcaster
	Logger      zerolog.Logger
}

// New builds the gin engine with all middleware and routes mounted.
func New(deps Dependencies) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.RateLimit(middleware.RateLimiterConfig{
		RPS:   deps.Config.RateLimit.RPS,
		Burst: deps.Config.RateLimit.Burst,
	}))

	var pinger handler.Pinger
	if deps.Broker != nil {
		pinger = deps.Broker
	}
	healthHandler := handler.NewHandler(deps.DB, pinger)
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(deps.Auth)

	authHandler := authhandler.NewHandler(deps.Auth)
	userHandler := userhandler.NewHandler(deps.Users, authMiddleware)
	appointmentHandler := appointmenthandler.NewHandler(deps.Scheduling, authMiddleware)
	wsHandler := wshandler.NewHandler(deps.Broadcaster, deps.Logger)

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1)
		userHandler.RegisterPublicRoutes(v1)
		wsHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(authMiddleware.Authenticate())
		{
			userHandler.RegisterRoutes(protected)
			appointmentHandler.RegisterRoutes(protected)
		}
	}

	return r
}

// registerValidators adds the custom binding rules used by request
// structs.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("specialty", func(fl validator.FieldLevel) bool {
		return model.Specialty(fl.Field().String()).Valid()
	})
}
