package favorites

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/starfall-labs/favpanel/internal/host"
)

// Session is one open favorites browser: a cache of every chat of the
// active owner plus the chat file the popup is currently viewing. The
// cache lives exactly as long as the session.
type Session struct {
	ID          string
	Cache       *Cache
	ViewingChat string
	lastUsed    time.Time
}

// SessionManager owns browse sessions. It replaces the module-global
// cache singleton with state scoped to "the favorites browser is open";
// idle sessions expire after a TTL as the panel cannot observe the
// browser closing implicitly.
type SessionManager struct {
	mu       sync.Mutex
	gw       *Gateway
	ctxs     host.ContextProvider
	ttl      time.Duration
	perPage  int
	sessions map[string]*Session
}

func NewSessionManager(gw *Gateway, ctxs host.ContextProvider, ttl time.Duration, perPage int) *SessionManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if perPage <= 0 {
		perPage = 5
	}
	return &SessionManager{
		gw:       gw,
		ctxs:     ctxs,
		ttl:      ttl,
		perPage:  perPage,
		sessions: make(map[string]*Session),
	}
}

// Open populates a fresh cache from the host and registers the session.
// The viewing chat defaults to the active chat when it appears in the
// cache, the first listed chat otherwise.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	records, err := m.gw.ListAllChatFavorites(ctx)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:       ulid.Make().String(),
		Cache:    NewCache(records),
		lastUsed: time.Now(),
	}
	if active := m.ctxs.Active(); active != nil && sess.Cache.Find(active.ChatID) != nil {
		sess.ViewingChat = active.ChatID
	} else if len(records) > 0 {
		sess.ViewingChat = records[0].FileName
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get returns a live session, touching its idle timer.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Since(sess.lastUsed) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	sess.lastUsed = time.Now()
	return sess, true
}

// Close discards the session and its cache.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Sweep drops sessions idle past the TTL.
func (m *SessionManager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if time.Since(sess.lastUsed) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

// ChatSummary is one row of the session's chat list.
type ChatSummary struct {
	FileName       string `json:"file_name"`
	DisplayName    string `json:"display_name"`
	FavoritesCount int    `json:"favorites_count"`
	Active         bool   `json:"active"`
}

// Chats lists the session's cached chats with favorite counts.
func (m *SessionManager) Chats(id string) ([]ChatSummary, error) {
	sess, ok := m.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	activeChat := ""
	if active := m.ctxs.Active(); active != nil {
		activeChat = active.ChatID
	}
	out := make([]ChatSummary, 0, sess.Cache.Len())
	for _, rec := range sess.Cache.Records() {
		out = append(out, ChatSummary{
			FileName:       rec.FileName,
			DisplayName:    rec.DisplayName,
			FavoritesCount: len(rec.Favorites()),
			Active:         rec.FileName == activeChat,
		})
	}
	return out, nil
}

// FavoriteView is one favorite prepared for display: the item plus a
// preview of the message it points at, or a placeholder when the
// positional reference no longer resolves.
type FavoriteView struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Role      string `json:"role"`
	Note      string `json:"note"`
	Preview   string `json:"preview"`
	Available bool   `json:"available"`
}

// FavoritesPage is one page of a chat's favorites, ordered ascending by
// numeric message id with non-numeric ids last.
type FavoritesPage struct {
	ChatFile    string         `json:"chat_file"`
	DisplayName string         `json:"display_name"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	TotalPages  int            `json:"total_pages"`
	PerPage     int            `json:"per_page"`
	Items       []FavoriteView `json:"items"`
}

const unavailablePlaceholder = "[原始消息内容不可用或已删除]"

// ListFavorites pages through one chat's favorites. An empty chatFile
// keeps the session's current viewing chat; naming a chat switches the
// session to it, and naming one the cache does not hold is ErrNotFound.
func (m *SessionManager) ListFavorites(id, chatFile string, page int) (*FavoritesPage, error) {
	sess, ok := m.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	if chatFile == "" {
		chatFile = sess.ViewingChat
	}
	rec := sess.Cache.Find(chatFile)
	if rec == nil && chatFile == "" && sess.Cache.Len() > 0 {
		rec = sess.Cache.Records()[0]
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	sess.ViewingChat = rec.FileName

	sorted := host.SortFavorites(rec.Favorites())
	total := len(sorted)
	totalPages := (total + m.perPage - 1) / m.perPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * m.perPage
	end := start + m.perPage
	if end > total {
		end = total
	}

	items := make([]FavoriteView, 0, end-start)
	for _, fav := range sorted[start:end] {
		view := FavoriteView{
			ID:        fav.ID,
			MessageID: fav.MessageID,
			Sender:    fav.Sender,
			Role:      fav.Role,
			Note:      fav.Note,
		}
		if idx := host.MessageIndex(fav, rec.Messages); idx >= 0 {
			view.Available = true
			view.Preview = previewText(rec.Messages[idx].Text())
		} else {
			view.Preview = unavailablePlaceholder
		}
		items = append(items, view)
	}

	return &FavoritesPage{
		ChatFile:    rec.FileName,
		DisplayName: rec.DisplayName,
		Total:       total,
		Page:        page,
		TotalPages:  totalPages,
		PerPage:     m.perPage,
		Items:       items,
	}, nil
}

func previewText(s string) string {
	runes := []rune(s)
	if len(runes) <= 100 {
		return s
	}
	return string(runes[:100]) + "…"
}
