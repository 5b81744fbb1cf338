package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route of the service.
func NewRouter(h *Handler, uploadDir string) *gin.Engine {
	r := gin.Default()

	r.GET("/health", h.Health)
	r.Static("/uploads", uploadDir)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.Auth.Middleware())
	api.GET("/online", h.ListOnline)

	api.GET("/chats", h.ListChats)
	api.POST("/chats", h.CreateChat)
	api.GET("/chats/:id", h.GetChat)
	api.DELETE("/chats/:id", h.DeleteChat)
	api.POST("/chats/:id/messages", h.SendMessage)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications", h.Auth.RequireAdmin(), h.CreateNotification)
	api.PATCH("/notifications/read-all", h.MarkAllNotificationsRead)
	api.DELETE("/notifications/:id", h.DeleteNotification)

	return r
}

func (h *Handler) Health(c *gin.Context) {
	clients := 0
	if h.Hub != nil {
		clients = h.Hub.ClientCount()
	}
	respond(c, http.StatusOK, "ok", gin.H{"connections": clients})
}

func (h *Handler) ListOnline(c *gin.Context) {
	users, err := h.onlineUsers(c.Request.Context())
	if err != nil {
		failWithError(c, err, "read online users")
		return
	}
	respond(c, http.StatusOK, "", users)
}
