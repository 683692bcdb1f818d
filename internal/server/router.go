package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/soundweb-ingestor/internal/handlers"
)

type RouterConfig struct {
	IngestHandler *handlers.IngestHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/test", cfg.IngestHandler.Test)
		api.POST("/sync/top-artists", cfg.IngestHandler.EnqueueTopArtistSync)
		api.GET("/sync/runs/:id", cfg.IngestHandler.GetSyncRun)
		api.POST("/add/custom-artist", cfg.IngestHandler.AddCustomArtist)
		api.POST("/remove/custom-tag", cfg.IngestHandler.RemoveCustomTag)
	}

	return router
}
