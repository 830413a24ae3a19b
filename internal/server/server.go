// Package server assembles the HTTP router and runs the API server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aimd54/forum-progression/internal/api/admin"
	"github.com/aimd54/forum-progression/internal/api/dashboard"
	"github.com/aimd54/forum-progression/internal/api/xp"
	"github.com/aimd54/forum-progression/internal/auth"
	"github.com/aimd54/forum-progression/internal/config"
	"github.com/aimd54/forum-progression/internal/ratelimit"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health() error
}

// Deps are the collaborators the router needs.
type Deps struct {
	Config    *config.Config
	Health    HealthChecker
	Tokens    *auth.Manager
	Roles     auth.RoleLookup
	Limiter   ratelimit.Store
	XP        *xp.Handler
	Admin     *admin.Handler
	Dashboard *dashboard.Handler
	Log       *logger.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	switch d.Config.Server.Environment {
	case "development":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestID(), Recovery(d.Log), RequestLogger(d.Log))
	r.Use(cors.New(corsConfig(d.Config.Server.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	if d.Config.Metrics.Prometheus.Enabled {
		r.GET(d.Config.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	if d.Config.RateLimit.Enabled && d.Limiter != nil {
		api.Use(ratelimit.Middleware(d.Limiter, ratelimit.Config{
			Requests: d.Config.RateLimit.Requests,
			Window:   d.Config.RateLimit.Window(),
		}, d.Log))
	}

	d.Dashboard.RegisterRoutes(api)
	d.XP.RegisterRoutes(api.Group("/xp", auth.AuthRequired(d.Tokens)))
	d.Admin.RegisterRoutes(api.Group("/admin",
		auth.AuthRequired(d.Tokens),
		auth.RequireAdmin(d.Roles, d.Log)))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader, "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Run serves handler on port until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, port int, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
