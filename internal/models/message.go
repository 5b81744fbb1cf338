package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one entry of a conversation. Messages are append-only and
// ordered by CreatedAt.
type Message struct {
	ID             string       `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID string       `gorm:"type:uuid;not null;index:idx_conversation_created" json:"conversationId"`
	SenderID       string       `gorm:"type:text;not null" json:"sender"`
	Content        string       `gorm:"type:text" json:"content"`
	Attachments    []Attachment `gorm:"constraint:OnDelete:CASCADE" json:"attachments"`
	CreatedAt      time.Time    `gorm:"index:idx_conversation_created" json:"createdAt"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Attachment is file metadata attached to a message. Immutable once stored.
type Attachment struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID string `gorm:"type:uuid;not null;index" json:"-"`
	Name      string `gorm:"type:text;not null" json:"name"`
	Size      int64  `json:"size"`
	MimeType  string `gorm:"type:text" json:"mimeType"`
	URL       string `gorm:"type:text;not null" json:"url"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (a *Attachment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
