package router

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ritikbhatt20/Helius-Dexer/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "dexer-api-service",
		})
	})

	r.GET("/ready", readinessHandler(deps.Readiness, deps.Logger))

	if deps.Metrics.IsEnabled() {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	connectionHandler := handler.NewConnectionHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	// Provider callbacks authenticate with the shared secret, not a bearer token.
	r.POST("/webhooks/:jobType/:jobId", webhookHandler.ReceiveWebhook)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.JWTSecret, deps.Logger))
	{
		connections := v1.Group("/connections")
		{
			connections.POST("", connectionHandler.CreateConnection)
			connections.POST("/test", connectionHandler.TestConnection)
			connections.GET("", connectionHandler.ListConnections)
			connections.GET("/:id", connectionHandler.GetConnection)
			connections.PUT("/:id", connectionHandler.UpdateConnection)
			connections.DELETE("/:id", connectionHandler.DeleteConnection)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.DELETE("/:id", jobHandler.DeleteJob)
			jobs.POST("/:id/pause", jobHandler.PauseJob)
			jobs.POST("/:id/resume", jobHandler.ResumeJob)
			jobs.POST("/:id/complete", jobHandler.CompleteJob)
			jobs.GET("/:id/logs", jobHandler.GetJobLogs)
		}
	}

	return r
}

// readinessHandler reports 503 while any backing service check fails.
func readinessHandler(checks map[string]func(ctx context.Context) error, logger *slog.Logger) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		services := make(gin.H, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("Readiness check failed", slog.String("service", name), slog.Any("error", err))
				services[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			services[name] = "ok"
		}

		ready := "ready"
		if status != http.StatusOK {
			ready = "not_ready"
		}
		c.JSON(status, gin.H{"status": ready, "services": services})
	}
}
