package host

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleCharacter = "character"
)

// FavoriteItem marks a single message of a chat, with an optional note.
// Identity is ID; MessageID is the string form of the message's position
// in the chat's message list.
type FavoriteItem struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	Note      string `json:"note"`
}

// Owner scopes which chats exist: a single character or a group,
// mutually exclusive. Name and Avatar carry the resolved display name
// and avatar the host endpoints expect in request bodies.
type Owner struct {
	CharacterID string
	GroupID     string
	Name        string
	Avatar      string
}

func (o Owner) IsGroup() bool { return o.GroupID != "" }

func (o Owner) Valid() bool { return o.CharacterID != "" || o.GroupID != "" }

// PreviewKey is the settings key the preview-chat registry is stored under.
func (o Owner) PreviewKey() string {
	if o.IsGroup() {
		return "group_" + o.GroupID
	}
	return "char_" + o.CharacterID
}

// Message is a host-owned chat message. The panel treats it as opaque and
// only reads a handful of well-known fields.
type Message map[string]any

func (m Message) Text() string {
	s, _ := m["mes"].(string)
	return s
}

func (m Message) IsUser() bool {
	b, _ := m["is_user"].(bool)
	return b
}

func (m Message) Name() string {
	s, _ := m["name"].(string)
	return s
}

// SendDate returns the message timestamp when it is present in a shape we
// can interpret. Hosts have been observed to send unix milliseconds or a
// preformatted string.
func (m Message) SendDate() (time.Time, bool) {
	switch v := m["send_date"].(type) {
	case float64:
		return time.UnixMilli(int64(v)), true
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-1-2 15:04"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Clone deep-copies the message through a JSON round trip.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Message{}
	}
	var out Message
	if err := json.Unmarshal(b, &out); err != nil {
		return Message{}
	}
	return out
}

// Envelope is the head record of a persisted chat file: chat-level
// identification followed by the full metadata document.
type Envelope struct {
	UserName      string    `json:"user_name"`
	CharacterName string    `json:"character_name"`
	CreateDate    string    `json:"create_date,omitempty"`
	ChatMetadata  *Metadata `json:"chat_metadata,omitempty"`
}

// Document is a fetched chat normalized into metadata plus ordered messages.
type Document struct {
	Metadata *Metadata
	Messages []Message
}

// ChatDescriptor is one entry of a chat listing. Raw keeps the whole
// listing record so callers can use it as a fast-path metadata source.
type ChatDescriptor struct {
	FileName string
	Raw      json.RawMessage
}

func (d *ChatDescriptor) UnmarshalJSON(data []byte) error {
	var head struct {
		FileName string `json:"file_name"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	d.FileName = TrimChatExt(head.FileName)
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// TrimChatExt strips the container format extension the host appends to
// chat file names; internally the panel always works extension-free.
func TrimChatExt(name string) string {
	return strings.TrimSuffix(name, ".jsonl")
}
