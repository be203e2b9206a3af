package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/starfall-labs/favpanel/internal/common"
	"github.com/starfall-labs/favpanel/internal/httpapi/handlers"
	"github.com/starfall-labs/favpanel/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// favorites browser sessions
	r.POST("/session", h.OpenSession)
	r.DELETE("/session/:id", h.CloseSession)
	r.GET("/session/:id/chats", h.ListSessionChats)
	r.GET("/session/:id/favorites", h.ListSessionFavorites)

	// favorite mutations
	r.POST("/favorites", h.AddFavorite)
	r.DELETE("/favorites/:id", h.RemoveFavorite)
	r.PUT("/favorites/:id/note", h.UpdateFavoriteNote)

	// exports
	r.GET("/export/:format", h.ExportFavorites)

	// preview mode
	r.POST("/preview", h.StartPreview)
	r.POST("/preview/return", h.ReturnFromPreview)
	r.GET("/preview", h.PreviewState)

	// host push surface
	r.POST("/host/context", h.SyncHostContext)
	r.POST("/host/events/chat-changed", h.HostChatChanged)

	return r
}
