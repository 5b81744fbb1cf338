package handler

import (
	"brokerdesk/backend/internal/chathub"
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"context"
	"io"

	"golang.org/x/sync/singleflight"
)

// AttachmentStore persists uploaded attachment bytes.
type AttachmentStore interface {
	Save(name string, r io.Reader, mimeType string) (*models.Attachment, error)
	Remove(att *models.Attachment) error
}

// NotificationRelay forwards notifications to an out-of-band channel.
type NotificationRelay interface {
	Notify(n models.Notification) error
}

// Handler містить посилання на ChatHub та сховища
type Handler struct {
	Hub            *chathub.ManagerService
	Storage        storage.Storage
	Files          AttachmentStore
	Auth           *Authenticator
	Relay          NotificationRelay
	MaxUploadBytes int64

	onlineGroup singleflight.Group
}

// NewHandler wires the REST and websocket handlers. relay may be nil.
func NewHandler(hub *chathub.ManagerService, s storage.Storage, files AttachmentStore, auth *Authenticator, relay NotificationRelay, maxUploadBytes int64) *Handler {
	return &Handler{
		Hub:            hub,
		Storage:        s,
		Files:          files,
		Auth:           auth,
		Relay:          relay,
		MaxUploadBytes: maxUploadBytes,
	}
}

// onlineUsers reads the online set once for all concurrent callers. The
// shared read must not die with whichever request happened to start it.
func (h *Handler) onlineUsers(ctx context.Context) ([]string, error) {
	v, err, _ := h.onlineGroup.Do("online", func() (any, error) {
		return h.Storage.OnlineUsers(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
