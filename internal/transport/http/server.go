package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/bootstrap"
	"ragweaver/internal/transport/http/handler"
	"ragweaver/internal/transport/http/middleware"
	"ragweaver/internal/transport/http/response"
)

// NewRouter mounts every route at the root and again under /api.
func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS())
	if app.Config.Upload.MaxFileSize > 0 {
		router.MaxMultipartMemory = app.Config.Upload.MaxFileSize
	}

	healthHandler := handler.NewHealthHandler(app)
	ingestHandler := handler.NewIngestHandler(app.Ingest)
	queryHandler := handler.NewQueryHandler(app.Query)
	documentHandler := handler.NewDocumentHandler(app.Documents)
	historyHandler := handler.NewHistoryHandler(app.History)

	router.GET("/healthz", healthHandler.Check)

	for _, group := range []*gin.RouterGroup{&router.RouterGroup, router.Group("/api")} {
		group.POST("/embed", ingestHandler.Upload)
		group.POST("/query", queryHandler.Query)
		group.GET("/documents", documentHandler.List)
		group.DELETE("/documents/:id", documentHandler.Delete)
		group.GET("/sessions", historyHandler.Sessions)
		group.GET("/history", historyHandler.History)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, nethttp.StatusNotFound, "not found")
	})

	return router
}
