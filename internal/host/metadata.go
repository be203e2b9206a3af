package host

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Metadata is a chat's metadata document: an open key/value record that
// must carry a favorites array. Keys other than "favorites" are preserved
// byte-for-byte across decode/encode so the panel never drops host state
// it does not understand.
type Metadata struct {
	Favorites []FavoriteItem
	Extra     map[string]json.RawMessage
}

func NewMetadata() *Metadata {
	return &Metadata{Favorites: []FavoriteItem{}}
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	m.Favorites = []FavoriteItem{}
	m.Extra = make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k == "favorites" {
			var favs []FavoriteItem
			if err := json.Unmarshal(v, &favs); err == nil && favs != nil {
				m.Favorites = favs
			}
			continue
		}
		m.Extra[k] = v
	}
	return nil
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(m.Extra)+1)
	for k, v := range m.Extra {
		fields[k] = v
	}
	favs := m.Favorites
	if favs == nil {
		favs = []FavoriteItem{}
	}
	b, err := json.Marshal(favs)
	if err != nil {
		return nil, err
	}
	fields["favorites"] = b
	return json.Marshal(fields)
}

// Clone deep-copies the document. Mutations intended for persistence must
// happen on a clone and reach shared caches only after the write succeeds.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return NewMetadata()
	}
	out := &Metadata{Favorites: append([]FavoriteItem(nil), m.Favorites...)}
	if out.Favorites == nil {
		out.Favorites = []FavoriteItem{}
	}
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// EnsureFavorites initializes the favorites array in place when absent.
func (m *Metadata) EnsureFavorites() {
	if m.Favorites == nil {
		m.Favorites = []FavoriteItem{}
	}
}

// FindFavorite returns the index of the favorite with the given id, -1 when absent.
func (m *Metadata) FindFavorite(id string) int {
	for i := range m.Favorites {
		if m.Favorites[i].ID == id {
			return i
		}
	}
	return -1
}

// CreateDate reads the chat creation date the host stored, "" when absent.
func (m *Metadata) CreateDate() string {
	raw, ok := m.Extra["create_date"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SortFavorites returns a copy ordered ascending by numeric MessageID.
// Entries whose MessageID does not parse sort last, keeping their
// relative order.
func SortFavorites(favs []FavoriteItem) []FavoriteItem {
	out := append([]FavoriteItem(nil), favs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i].MessageID)
		b, errB := strconv.Atoi(out[j].MessageID)
		if errA != nil && errB != nil {
			return false
		}
		if errA != nil {
			return false
		}
		if errB != nil {
			return true
		}
		return a < b
	})
	return out
}

// MessageIndex resolves a favorite's MessageID against a message list,
// returning -1 when it does not point at an existing message.
func MessageIndex(fav FavoriteItem, messages []Message) int {
	idx, err := strconv.Atoi(fav.MessageID)
	if err != nil || idx < 0 || idx >= len(messages) {
		return -1
	}
	return idx
}
