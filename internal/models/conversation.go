package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Conversation is a chat room between a fixed set of participants.
type Conversation struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Participants pq.StringArray `gorm:"type:text[];not null" json:"participants"`
	CreatedAt    time.Time      `json:"createdAt"`

	// Messages is only populated when a single conversation is fetched.
	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
