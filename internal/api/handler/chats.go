package handler

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

type createChatRequest struct {
	Participants []string `json:"participants"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListChats(c *gin.Context) {
	convs, err := h.Storage.ListConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		failWithError(c, err, "list conversations")
		return
	}
	respond(c, http.StatusOK, "", convs)
}

// CreateChat opens a conversation between the caller and the listed participants.
func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	participants := uniqueUsers(append([]string{currentUser(c)}, req.Participants...))
	if len(participants) < 2 {
		fail(c, http.StatusBadRequest, "A conversation needs at least one other participant")
		return
	}

	conv := &models.Conversation{Participants: pq.StringArray(participants)}
	if err := h.Storage.CreateConversation(c.Request.Context(), conv); err != nil {
		failWithError(c, err, "create conversation")
		return
	}
	respond(c, http.StatusCreated, "Conversation created", conv)
}

// GetChat returns the conversation with its full history, oldest first.
func (h *Handler) GetChat(c *gin.Context) {
	conv, ok := h.loadConversation(c)
	if !ok {
		return
	}

	msgs, err := h.Storage.GetMessages(c.Request.Context(), conv.ID)
	if err != nil {
		failWithError(c, err, "load messages")
		return
	}
	conv.Messages = msgs
	respond(c, http.StatusOK, "", conv)
}

// SendMessage accepts JSON {"content"} or a multipart form with content and
// attachments, persists the message and fans it out to the room.
func (h *Handler) SendMessage(c *gin.Context) {
	conv, ok := h.loadConversation(c)
	if !ok {
		return
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       currentUser(c),
		Attachments:    []models.Attachment{},
	}

	// Files saved before the message is committed are removed on any failure.
	committed := false
	defer func() {
		if !committed {
			h.discardAttachments(msg.Attachments)
		}
	}()

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid multipart form")
			return
		}
		if values := form.Value["content"]; len(values) > 0 {
			msg.Content = values[0]
		}
		files := form.File["attachments"]
		for _, fh := range files {
			if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
				fail(c, http.StatusRequestEntityTooLarge, "Attachment "+fh.Filename+" is too large")
				return
			}
		}
		for _, fh := range files {
			att, err := h.saveAttachment(fh)
			if err != nil {
				failWithError(c, err, "store attachment")
				return
			}
			msg.Attachments = append(msg.Attachments, *att)
		}
	} else {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		msg.Content = req.Content
	}

	if strings.TrimSpace(msg.Content) == "" && len(msg.Attachments) == 0 {
		fail(c, http.StatusBadRequest, "Message is empty")
		return
	}

	if err := h.Storage.CreateMessage(c.Request.Context(), msg); err != nil {
		failWithError(c, err, "save message")
		return
	}
	committed = true

	h.publish(c.Request.Context(), storage.RoomChannel(conv.ID), models.EventNewMessage, msg)
	respond(c, http.StatusCreated, "Message sent", msg)
}

// DeleteChat removes the conversation and its history. Other participants
// learn about it on their next list fetch.
func (h *Handler) DeleteChat(c *gin.Context) {
	conv, ok := h.loadConversation(c)
	if !ok {
		return
	}

	if err := h.Storage.DeleteConversation(c.Request.Context(), conv.ID); err != nil {
		failWithError(c, err, "delete conversation")
		return
	}
	respond(c, http.StatusOK, "Conversation deleted", nil)
}

// loadConversation fetches :id and checks the caller is a participant.
// It writes the error response itself and reports false on failure.
func (h *Handler) loadConversation(c *gin.Context) (*models.Conversation, bool) {
	conv, err := h.Storage.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWithError(c, err, "load conversation")
		return nil, false
	}
	if !conv.HasParticipant(currentUser(c)) {
		failWithError(c, errForbidden, "load conversation")
		return nil, false
	}
	return conv, true
}

func (h *Handler) saveAttachment(fh *multipart.FileHeader) (*models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	return h.Files.Save(fh.Filename, f, mimeType)
}

func (h *Handler) discardAttachments(atts []models.Attachment) {
	for i := range atts {
		if err := h.Files.Remove(&atts[i]); err != nil {
			log.Printf("WARNING: Failed to discard attachment %s: %v", atts[i].URL, err)
		}
	}
}

// uniqueUsers drops empty and repeated ids, keeping first-seen order.
func uniqueUsers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
