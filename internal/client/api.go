package client

import (
	"brokerdesk/backend/internal/models"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// APIError is a REST call the server answered with success == false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// API is the desk's REST client.
type API struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *API) Online(ctx context.Context) ([]string, error) {
	var users []string
	err := a.do(ctx, http.MethodGet, "/api/online", nil, "", &users)
	return users, err
}

func (a *API) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := a.do(ctx, http.MethodGet, "/api/chats", nil, "", &convs)
	return convs, err
}

func (a *API) CreateConversation(ctx context.Context, participants ...string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := a.doJSON(ctx, http.MethodPost, "/api/chats", map[string]any{"participants": participants}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (a *API) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := a.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(id), nil, "", &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage posts JSON, or a multipart form when there are uploads.
func (a *API) SendMessage(ctx context.Context, conversationID, content string, uploads []Upload) (*models.Message, error) {
	path := "/api/chats/" + url.PathEscape(conversationID) + "/messages"

	var msg models.Message
	if len(uploads) == 0 {
		if err := a.doJSON(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	}

	body, contentType, err := multipartMessage(content, uploads)
	if err != nil {
		return nil, err
	}
	if err := a.do(ctx, http.MethodPost, path, body, contentType, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) DeleteConversation(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil, "", nil)
}

func (a *API) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var list []models.Notification
	err := a.do(ctx, http.MethodGet, "/api/notifications", nil, "", &list)
	return list, err
}

func (a *API) MarkAllNotificationsRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPatch, "/api/notifications/read-all", nil, "", nil)
}

func (a *API) DeleteNotification(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, "", nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartMessage(content string, uploads []Upload) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	if err := mw.WriteField("content", content); err != nil {
		return nil, "", err
	}
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename="%s"`, quoteEscaper.Replace(u.Name)))
		mimeType := u.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h.Set("Content-Type", mimeType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, u.Reader); err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", u.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

func (a *API) doJSON(ctx context.Context, method, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return a.do(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

// do performs one call and unwraps the {success, message, data} envelope into out.
func (a *API) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env models.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
		}
	}
	return nil
}
