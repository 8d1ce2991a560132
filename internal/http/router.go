package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/callcoach/backend/internal/archive"
	"github.com/callcoach/backend/internal/config"
	"github.com/callcoach/backend/internal/http/handlers"
	"github.com/callcoach/backend/internal/http/middleware"
	"github.com/callcoach/backend/internal/service"

	_ "github.com/callcoach/backend/docs"
)

func Router(cfg config.Config, calls *service.Manager, arch archive.Archive, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		for _, o := range strings.Split(cfg.CORSAllowed, ",") {
			if o = strings.TrimSpace(o); o != "" {
				corsCfg.AllowOrigins = append(corsCfg.AllowOrigins, o)
			}
		}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Calls:     calls,
		Archive:   arch,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.POST("/calls/start", h.StartCall)
		api.POST("/calls/transcript", h.AppendTranscript)
		api.POST("/calls/end", h.EndCall)
		api.GET("/calls/current", h.CurrentCall)
		api.GET("/nudges/latest", h.LatestNudges)
		api.POST("/nudges/ack", h.AckNudges)
		api.GET("/lead-score/current", h.CurrentLeadScore)
		api.GET("/customers/:id/lead-score", h.CustomerLeadScore)
		api.GET("/customers/:id/appointments", h.CustomerAppointments)
	}

	admin := api.Group("/sessions")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.GET("/latest", h.LatestSession)
		admin.GET("/:callId", h.SessionByID)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
