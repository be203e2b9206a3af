package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starfall-labs/favpanel/internal/host"
)

type jsonlEnvelope struct {
	UserName       string         `json:"user_name"`
	CharacterName  string         `json:"character_name"`
	ChatCreateDate string         `json:"chat_create_date"`
	ChatMetadata   *host.Metadata `json:"chat_metadata"`
}

// JSONL renders favorites in the host's chat-file layout: a metadata
// envelope line followed by each resolved message verbatim, ordered by
// sorted favorite order. Favorites whose message no longer resolves are
// skipped here, unlike the placeholder entries of the text and worldbook
// formats: this output must stay loadable as a chat file, and a
// fabricated placeholder message would pollute it.
func JSONL(in Input) (*File, error) {
	sorted, err := in.sortedFavorites()
	if err != nil {
		return nil, err
	}

	var resolved []host.Message
	for _, fav := range sorted {
		if idx := host.MessageIndex(fav, in.Messages); idx >= 0 {
			resolved = append(resolved, in.Messages[idx].Clone())
		}
	}
	if len(resolved) == 0 {
		return nil, ErrNoFavorites
	}

	now := in.now()
	createDate := ""
	if in.Metadata != nil {
		createDate = in.Metadata.CreateDate()
	}
	if createDate == "" {
		createDate = now.Format("2006-01-02 15:04:05")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(jsonlEnvelope{
		UserName:       in.UserName,
		CharacterName:  in.EntityName,
		ChatCreateDate: createDate,
		ChatMetadata:   in.Metadata,
	}); err != nil {
		return nil, err
	}
	for _, msg := range resolved {
		if err := enc.Encode(msg); err != nil {
			return nil, err
		}
	}

	name := fmt.Sprintf("%s_收藏_%s.jsonl", safeName(in.DisplayName), now.Format("20060102_150405"))
	return &File{
		Name:    name,
		MIME:    "application/jsonlines; charset=utf-8",
		Content: buf.Bytes(),
		Count:   len(resolved),
	}, nil
}
