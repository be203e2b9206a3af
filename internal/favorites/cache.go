package favorites

import (
	"github.com/starfall-labs/favpanel/internal/host"
)

// ChatRecord is one chat of the active owner as held by a browse
// session's cache: its metadata document (favorites live inside it) and
// its full message list.
type ChatRecord struct {
	FileName    string
	DisplayName string
	Metadata    *host.Metadata
	Messages    []host.Message
	IsGroup     bool
	CharacterID string
	GroupID     string
}

// Favorites returns the record's favorites array; it aliases the
// metadata document, so consumers wanting an ordered view must copy.
func (r *ChatRecord) Favorites() []host.FavoriteItem {
	if r.Metadata == nil {
		return nil
	}
	return r.Metadata.Favorites
}

// Cache mirrors every chat of the active owner for the lifetime of one
// browse session. It exists to avoid refetching while the user moves
// between chats; it is discarded wholesale when the session closes.
type Cache struct {
	records []*ChatRecord
}

func NewCache(records []*ChatRecord) *Cache {
	return &Cache{records: records}
}

func (c *Cache) Records() []*ChatRecord {
	if c == nil {
		return nil
	}
	return c.records
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Find returns the record for a chat file, nil when absent.
func (c *Cache) Find(fileName string) *ChatRecord {
	if c == nil {
		return nil
	}
	fileName = host.TrimChatExt(fileName)
	for _, r := range c.records {
		if host.TrimChatExt(r.FileName) == fileName {
			return r
		}
	}
	return nil
}

// Replace deep-replaces a record's metadata and messages after a
// successful persist. Mutations never land here before the write
// succeeds; a failed write leaves the cache untouched.
func (c *Cache) Replace(fileName string, md *host.Metadata, messages []host.Message) {
	rec := c.Find(fileName)
	if rec == nil {
		return
	}
	rec.Metadata = md.Clone()
	copied := make([]host.Message, 0, len(messages))
	for _, m := range messages {
		copied = append(copied, m.Clone())
	}
	rec.Messages = copied
}
