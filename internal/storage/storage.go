package storage

import (
	"brokerdesk/backend/internal/models"
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or is not visible to the caller.
var ErrNotFound = errors.New("record not found")

// validID reports whether id can be a primary key at all. Anything else is
// treated as missing instead of reaching Postgres as a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Storage is everything the hub and the REST handlers need from PostgreSQL and Redis.
type Storage interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error

	MarkConnectionOnline(ctx context.Context, userID string) (bool, error)
	MarkConnectionOffline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)

	Publish(ctx context.Context, channel string, evt models.Event) error
	Subscribe(ctx context.Context) (<-chan Broadcast, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates every table the service uses.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.Attachment{},
		&models.Notification{},
	)
}

// CreateConversation зберігає нову розмову в PostgreSQL
func (s *Service) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return s.DB.WithContext(ctx).Create(conv).Error
}

func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var conv models.Conversation

	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get conversation %s: %v", id, err)
		return nil, err
	}
	return &conv, nil
}

// ListConversations повертає розмови, в яких бере участь користувач, новіші першими.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs := []models.Conversation{}
	err := s.DB.WithContext(ctx).
		Where("? = ANY(participants)", userID).
		Order("created_at desc").
		Find(&convs).Error
	if err != nil {
		log.Printf("ERROR: Failed to list conversations for %s: %v", userID, err)
		return nil, err
	}
	return convs, nil
}

// DeleteConversation видаляє розмову разом з повідомленнями та вкладеннями.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageIDs := tx.Model(&models.Message{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateMessage зберігає повідомлення з вкладеннями; після виклику msg містить
// канонічні ID та CreatedAt.
func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for conversation %s: %v", msg.ConversationID, err)
		return err
	}
	if msg.Attachments == nil {
		msg.Attachments = []models.Attachment{}
	}
	return nil
}

// GetMessages отримує історію повідомлень розмови, сортуючи за часом створення
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs := []models.Message{}
	if !validID(conversationID) {
		return msgs, nil
	}
	err := s.DB.WithContext(ctx).
		Preload("Attachments").
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to get messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	for i := range msgs {
		if msgs[i].Attachments == nil {
			msgs[i].Attachments = []models.Attachment{}
		}
	}
	return msgs, nil
}

func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.DB.WithContext(ctx).Create(n).Error
}

// ListNotifications повертає сповіщення користувача, новіші першими.
func (s *Service) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	list := []models.Notification{}
	err := s.DB.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}

// DeleteNotification видаляє сповіщення лише якщо воно належить userID.
func (s *Service) DeleteNotification(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result := s.DB.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
