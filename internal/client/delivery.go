package client

import (
	"brokerdesk/backend/internal/models"
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
)

// Upload is one attachment to send with a message.
type Upload struct {
	Name     string
	MimeType string
	Reader   io.Reader
}

// ChatAPI is the REST surface the delivery layer depends on.
type ChatAPI interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	SendMessage(ctx context.Context, conversationID, content string, uploads []Upload) (*models.Message, error)
	DeleteConversation(ctx context.Context, id string) error
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Delivery handles conversation rooms and the personal notification channel.
// The session is a member of at most one room at a time.
type Delivery struct {
	self    string
	store   *Store
	events  *Dispatcher
	conn    Emitter
	api     ChatAPI
	alerter Alerter

	mu      sync.Mutex
	room    string
	offRoom func()
	offs    []func()
}

func NewDelivery(store *Store, events *Dispatcher, conn Emitter, api ChatAPI, alerter Alerter) *Delivery {
	return &Delivery{
		self:    store.SelfID(),
		store:   store,
		events:  events,
		conn:    conn,
		api:     api,
		alerter: alerter,
	}
}

// Bind registers the notification and reconnect handlers.
func (d *Delivery) Bind() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.offs = append(d.offs,
		d.events.On(models.EventNewNotification, d.onNotification),
		d.events.On(EventConnect, d.onConnect),
		d.events.On(EventReconnect, d.onConnect),
	)
}

// Unbind removes every handler, including the current room's.
func (d *Delivery) Unbind() {
	d.mu.Lock()
	offs := d.offs
	d.offs = nil
	if d.offRoom != nil {
		offs = append(offs, d.offRoom)
		d.offRoom = nil
	}
	d.room = ""
	d.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

// CurrentRoom returns the joined conversation id, or "".
func (d *Delivery) CurrentRoom() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.room
}

// JoinConversation subscribes to the live messages of id. Joining the current
// room again is a no-op; joining while in another room is ErrAlreadyInRoom.
func (d *Delivery) JoinConversation(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.room {
	case id:
		return nil
	case "":
		d.joinLocked(id)
		return nil
	default:
		return ErrAlreadyInRoom
	}
}

// LeaveConversation drops the current room, if any.
func (d *Delivery) LeaveConversation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked()
}

// SwitchConversation leaves the current room and joins id in one step.
// An empty id only leaves.
func (d *Delivery) SwitchConversation(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.room == id {
		return
	}
	d.leaveLocked()
	if id != "" {
		d.joinLocked(id)
	}
}

// The room state changes even when the emit fails: the join is replayed on
// the next connect.
func (d *Delivery) joinLocked(id string) {
	d.room = id
	d.offRoom = d.events.On(models.EventNewMessage, d.roomHandler(id))
	if err := d.conn.Emit(models.EventJoinChat, id); err != nil {
		log.Printf("WARNING: joinChat %s not sent: %v", id, err)
	}
}

func (d *Delivery) leaveLocked() {
	if d.room == "" {
		return
	}
	d.offRoom()
	d.offRoom = nil
	if err := d.conn.Emit(models.EventLeaveChat, d.room); err != nil {
		log.Printf("WARNING: leaveChat %s not sent: %v", d.room, err)
	}
	d.room = ""
}

func (d *Delivery) roomHandler(id string) Handler {
	return func(data json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WARNING: Bad newMessage payload: %v", err)
			return
		}
		if msg.ConversationID != id {
			return
		}
		// Own messages were appended from the REST response already.
		if msg.SenderID == d.self {
			return
		}
		playAlert(d.alerter)
		d.store.AppendMessage(msg)
	}
}

func (d *Delivery) onConnect(json.RawMessage) {
	room := d.CurrentRoom()
	if room == "" {
		return
	}
	if err := d.conn.Emit(models.EventJoinChat, room); err != nil {
		log.Printf("WARNING: Failed to rejoin %s: %v", room, err)
	}
}

func (d *Delivery) onNotification(data json.RawMessage) {
	var push models.NotificationPush
	if err := json.Unmarshal(data, &push); err != nil {
		log.Printf("WARNING: Bad newNotification payload: %v", err)
		return
	}
	d.store.PrependNotification(push.Notification)
	playAlert(d.alerter)
}

// LoadConversation fetches id with its history and makes it the open conversation.
func (d *Delivery) LoadConversation(ctx context.Context, id string) error {
	conv, err := d.api.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	d.store.SetActiveConversation(conv.ID, conv.Messages)
	return nil
}

// OpenConversation loads id and moves the live subscription to it.
func (d *Delivery) OpenConversation(ctx context.Context, id string) error {
	if err := d.LoadConversation(ctx, id); err != nil {
		return err
	}
	d.SwitchConversation(id)
	return nil
}

// CloseConversation clears the selection and leaves the room.
func (d *Delivery) CloseConversation() {
	d.store.ClearActiveConversation()
	d.LeaveConversation()
}

// SendMessage persists a message and appends the canonical copy the server
// returns. Nothing is shown before the round trip completes.
func (d *Delivery) SendMessage(ctx context.Context, conversationID, content string, uploads []Upload) (*models.Message, error) {
	msg, err := d.api.SendMessage(ctx, conversationID, content, uploads)
	if err != nil {
		return nil, err
	}
	d.store.AppendMessage(*msg)
	return msg, nil
}

// DeleteConversation removes id on the server, then clears it locally.
func (d *Delivery) DeleteConversation(ctx context.Context, id string) error {
	if err := d.api.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if d.store.ActiveConversation() == id {
		d.store.ClearActiveConversation()
	}
	d.mu.Lock()
	if d.room == id {
		d.leaveLocked()
	}
	d.mu.Unlock()
	return nil
}

func (d *Delivery) LoadNotifications(ctx context.Context) error {
	list, err := d.api.ListNotifications(ctx)
	if err != nil {
		return err
	}
	d.store.SetNotifications(list)
	return nil
}

func (d *Delivery) MarkAllRead(ctx context.Context) error {
	if err := d.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	d.store.MarkAllRead()
	return nil
}

func (d *Delivery) DeleteNotification(ctx context.Context, id string) error {
	if err := d.api.DeleteNotification(ctx, id); err != nil {
		return err
	}
	d.store.RemoveNotification(id)
	return nil
}
