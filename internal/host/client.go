package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStatus wraps non-success responses from host endpoints.
var ErrStatus = errors.New("host: unexpected status")

// Client talks to the host chat application's persistence and lifecycle
// endpoints.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	if c.HTTP == nil {
		return nil, errors.New("host: http client is nil")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s%s", c.BaseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-CSRF-Token", c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %d: %s", ErrStatus, path, resp.StatusCode, truncate(data, 200))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// ListChats returns the chat-file descriptors for an owner.
func (c *Client) ListChats(ctx context.Context, owner Owner) ([]ChatDescriptor, error) {
	var (
		data []byte
		err  error
	)
	if owner.IsGroup() {
		data, err = c.post(ctx, "/api/chats/search", map[string]any{
			"group_id": owner.GroupID,
			"query":    "",
		})
	} else {
		data, err = c.post(ctx, "/api/characters/chats", map[string]any{
			"avatar_url": owner.Avatar,
		})
	}
	if err != nil {
		return nil, err
	}
	var descs []ChatDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("host: chat listing is not an array: %w", err)
	}
	return descs, nil
}

// GetChat fetches a chat's raw persisted document. The body shape is
// polymorphic; callers normalize it with DecodeChatBody.
func (c *Client) GetChat(ctx context.Context, owner Owner, fileName string) ([]byte, error) {
	fileName = TrimChatExt(fileName)
	if owner.IsGroup() {
		return c.post(ctx, "/api/chats/group/get", map[string]any{
			"id":      owner.GroupID,
			"chat_id": fileName,
		})
	}
	return c.post(ctx, "/api/chats/get", map[string]any{
		"ch_name":    owner.Name,
		"file_name":  fileName,
		"avatar_url": owner.Avatar,
	})
}

// SaveChat overwrites a chat's stored document wholesale: the envelope
// first, then every message verbatim. There is no partial-update mode;
// last writer wins.
func (c *Client) SaveChat(ctx context.Context, owner Owner, fileName string, envelope Envelope, messages []Message) error {
	chat := make([]any, 0, len(messages)+1)
	chat = append(chat, envelope)
	for _, m := range messages {
		chat = append(chat, m)
	}

	body := map[string]any{
		"chat":      chat,
		"file_name": TrimChatExt(fileName),
		"force":     true,
	}
	if owner.IsGroup() {
		body["is_group"] = true
		body["id"] = owner.GroupID
	} else {
		body["ch_name"] = owner.Name
		body["avatar_url"] = owner.Avatar
	}

	_, err := c.post(ctx, "/api/chats/save", body)
	return err
}

// Lifecycle commands. Switching is asynchronous on the host side;
// completion arrives as a chat-changed notification.

func (c *Client) SwitchChat(ctx context.Context, owner Owner, chatID string) error {
	body := map[string]any{"chat_id": TrimChatExt(chatID)}
	if owner.IsGroup() {
		body["group_id"] = owner.GroupID
	} else {
		body["avatar_url"] = owner.Avatar
	}
	_, err := c.post(ctx, "/api/chats/switch", body)
	return err
}

func (c *Client) NewChat(ctx context.Context, owner Owner) (string, error) {
	body := map[string]any{}
	if owner.IsGroup() {
		body["group_id"] = owner.GroupID
	} else {
		body["avatar_url"] = owner.Avatar
	}
	data, err := c.post(ctx, "/api/chats/new", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("host: new chat response: %w", err)
	}
	if resp.ChatID == "" {
		return "", errors.New("host: new chat returned no chat id")
	}
	return TrimChatExt(resp.ChatID), nil
}

func (c *Client) RenameChat(ctx context.Context, oldChatID, newName string) error {
	_, err := c.post(ctx, "/api/chats/rename", map[string]any{
		"original_file": oldChatID,
		"renamed_file":  newName,
	})
	return err
}

func (c *Client) ClearChat(ctx context.Context) error {
	_, err := c.post(ctx, "/api/chats/clear", map[string]any{})
	return err
}

func (c *Client) AppendMessage(ctx context.Context, msg Message) error {
	_, err := c.post(ctx, "/api/chats/message", map[string]any{
		"message": msg,
		"scroll":  false,
	})
	return err
}
