package handler

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errForbidden = errors.New("forbidden")

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, models.Envelope[any]{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.Envelope[any]{Success: false, Message: message})
}

// failWithError maps storage and access errors to HTTP statuses.
func failWithError(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found")
	case errors.Is(err, errForbidden):
		fail(c, http.StatusForbidden, "Access denied")
	default:
		log.Printf("ERROR: Failed to %s: %v", operation, err)
		fail(c, http.StatusInternalServerError, "Failed to "+operation)
	}
}

// publish sends a live event through Redis. Failures are logged only: the
// record is already persisted and clients can still fetch it over REST.
func (h *Handler) publish(ctx context.Context, channel, name string, payload any) {
	evt, err := models.NewEvent(name, payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s: %v", name, err)
		return
	}
	if err := h.Storage.Publish(ctx, channel, evt); err != nil {
		log.Printf("ERROR: Failed to publish %s on %s: %v", name, channel, err)
	}
}
