package handler

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type createNotificationRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Recipients  []string `json:"recipients"`
}

func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.Storage.ListNotifications(c.Request.Context(), currentUser(c))
	if err != nil {
		failWithError(c, err, "list notifications")
		return
	}
	respond(c, http.StatusOK, "", list)
}

// CreateNotification stores one notification per recipient and pushes each to
// its recipient's personal channel. A system notification without explicit
// recipients goes to everyone currently online.
func (h *Handler) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Type == "" {
		req.Type = models.NotificationIndividual
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.ValidNotificationType(req.Type) {
		fail(c, http.StatusBadRequest, "Unknown notification type")
		return
	}
	if !models.ValidPriority(req.Priority) {
		fail(c, http.StatusBadRequest, "Unknown notification priority")
		return
	}

	ctx := c.Request.Context()
	recipients := uniqueUsers(req.Recipients)
	switch req.Type {
	case models.NotificationIndividual:
		if len(recipients) != 1 {
			fail(c, http.StatusBadRequest, "An individual notification needs exactly one recipient")
			return
		}
	case models.NotificationSystem:
		if len(recipients) == 0 {
			online, err := h.onlineUsers(ctx)
			if err != nil {
				failWithError(c, err, "read online users")
				return
			}
			recipients = uniqueUsers(online)
		}
	}
	if len(recipients) == 0 {
		fail(c, http.StatusBadRequest, "No recipients")
		return
	}

	created := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		n := &models.Notification{
			RecipientID: recipient,
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			Priority:    req.Priority,
		}
		if err := h.Storage.CreateNotification(ctx, n); err != nil {
			failWithError(c, err, "create notification")
			return
		}
		h.publish(ctx, storage.UserChannel(recipient), models.EventNewNotification, models.NotificationPush{Notification: *n})
		created = append(created, *n)
	}

	if req.Priority == models.PriorityHigh && h.Relay != nil {
		go h.relay(created[0])
	}

	respond(c, http.StatusCreated, "Notification created", created)
}

func (h *Handler) relay(n models.Notification) {
	if err := h.Relay.Notify(n); err != nil {
		log.Printf("WARNING: Failed to relay notification %s: %v", n.ID, err)
	}
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.Storage.MarkAllNotificationsRead(c.Request.Context(), currentUser(c)); err != nil {
		failWithError(c, err, "mark notifications read")
		return
	}
	respond(c, http.StatusOK, "All notifications marked as read", nil)
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	if err := h.Storage.DeleteNotification(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		failWithError(c, err, "delete notification")
		return
	}
	respond(c, http.StatusOK, "Notification deleted", nil)
}
