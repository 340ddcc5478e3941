package v1

import (
	"github.com/gin-gonic/gin"

	"file-hub/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(router gin.IRouter) {
	group := router.Group("/v1")
	group.POST("/files", r.handlers.Files.Upload)
	group.GET("/files", r.handlers.Files.List)
	group.GET("/files/duplicates", r.handlers.Files.Duplicates)
	group.GET("/files/stats", r.handlers.Files.Stats)
	group.GET("/files/:id/download", r.handlers.Files.Download)
	group.DELETE("/files/:id", r.handlers.Files.Delete)
}
