package main

import (
	"brokerdesk/backend/internal/client"
	"brokerdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

const help = `/chats                     list conversations
/new <user> [user...]      start a conversation
/open <id>                 open a conversation and follow it live
/close                     close the open conversation
/send <text>               send to the open conversation (plain text works too)
/attach <file> [text]      send a file
/delete <id>               delete a conversation
/notifications             list notifications
/readall                   mark all notifications read
/dismiss <id>              delete a notification
/hide, /show               toggle visibility
/online                    who is online
/reconnect                 reconnect after a lost connection
/quit`

type desk struct {
	session *client.Session
	api     *client.API
	view    *view
}

func (d *desk) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return d.send(ctx, line, nil)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/help":
		fmt.Println(help)
	case "/chats":
		return d.listChats(ctx)
	case "/new":
		if len(args) == 0 {
			return errors.New("usage: /new <user> [user...]")
		}
		conv, err := d.api.CreateConversation(ctx, args...)
		if err != nil {
			return err
		}
		fmt.Printf("created %s\n", conv.ID)
	case "/open":
		if len(args) != 1 {
			return errors.New("usage: /open <id>")
		}
		return d.session.Delivery.OpenConversation(ctx, args[0])
	case "/close":
		d.session.Delivery.CloseConversation()
	case "/send":
		return d.send(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/send")), nil)
	case "/attach":
		if len(args) == 0 {
			return errors.New("usage: /attach <file> [text]")
		}
		return d.attach(ctx, args[0], strings.Join(args[1:], " "))
	case "/delete":
		if len(args) != 1 {
			return errors.New("usage: /delete <id>")
		}
		if err := d.session.Delivery.DeleteConversation(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
	case "/notifications":
		d.listNotifications()
	case "/readall":
		return d.session.Delivery.MarkAllRead(ctx)
	case "/dismiss":
		if len(args) != 1 {
			return errors.New("usage: /dismiss <id>")
		}
		return d.session.Delivery.DeleteNotification(ctx, args[0])
	case "/hide":
		d.session.Presence.SetVisible(false)
	case "/show":
		d.session.Presence.SetVisible(true)
	case "/online":
		fmt.Println("online:", strings.Join(d.session.Store.OnlineUsers(), ", "))
	case "/reconnect":
		return d.session.Conn.Connect(context.Background())
	case "/quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (d *desk) send(ctx context.Context, text string, uploads []client.Upload) error {
	active := d.session.Store.ActiveConversation()
	if active == "" {
		return errors.New("no open conversation, use /open <id>")
	}
	_, err := d.session.Delivery.SendMessage(ctx, active, text, uploads)
	return err
}

func (d *desk) attach(ctx context.Context, path, text string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	upload := client.Upload{
		Name:     filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Reader:   f,
	}
	return d.send(ctx, text, []client.Upload{upload})
}

func (d *desk) listChats(ctx context.Context) error {
	convs, err := d.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("no conversations")
		return nil
	}
	for _, c := range convs {
		marker := " "
		if c.ID == d.session.Store.ActiveConversation() {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, c.ID, d.participants(c))
	}
	return nil
}

// participants marks online users with a dot.
func (d *desk) participants(c models.Conversation) string {
	names := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if d.session.Store.IsOnline(p) {
			p = "●" + p
		}
		names = append(names, p)
	}
	return strings.Join(names, ", ")
}

func (d *desk) listNotifications() {
	list := d.session.Store.Notifications()
	if len(list) == 0 {
		fmt.Println("no notifications")
		return
	}
	for _, n := range list {
		state := " "
		if !n.Read {
			state = "•"
		}
		fmt.Printf("%s %s [%s] %s  %s\n", state, n.ID, n.Priority, n.Title, n.CreatedAt.Format("02 Jan 15:04"))
	}
}
