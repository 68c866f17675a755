package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"narrator/config"
	"narrator/logging"
)

// NewRouter wires the job API. Routes under /api require a bearer token
// when cfg.JWTSecret is set.
func NewRouter(cfg *config.Config, h *VideoHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logging.NewComponentLogger(logger, "http")))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api := router.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(JWTAuth(cfg.JWTSecret))
	}
	{
		api.POST("/render", h.Render)
		api.GET("/status/:job_id", h.GetStatus)
		api.GET("/download/:job_id", h.Download)
		api.GET("/subtitles/:job_id", h.DownloadSubtitles)
	}
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
