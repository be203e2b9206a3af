package favorites

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/starfall-labs/favpanel/internal/host"
)

// MessageInfo identifies the message being favorited.
type MessageInfo struct {
	MessageID string
	Sender    string
	Role      string
}

// Options carry the browse-session context of a mutation: the session's
// cache and the chat file its popup is currently viewing.
type Options struct {
	Cache       *Cache
	ViewingChat string
}

// Store implements add/remove/annotate against a chat's metadata.
//
// Target resolution is always explicit argument, then the popup's
// viewing chat, then the active chat. The active chat mutates its live
// metadata under the context lock and defers persistence to the
// debounced autosave; any other chat is mutated on a deep copy and
// written through the Gateway, and the shared cache only sees the new
// state after that write succeeds.
type Store struct {
	gw       *Gateway
	ctxs     host.ContextProvider
	autosave host.Autosaver
}

func NewStore(gw *Gateway, ctxs host.ContextProvider, autosave host.Autosaver) *Store {
	return &Store{gw: gw, ctxs: ctxs, autosave: autosave}
}

// EnsureFavorites guarantees the active chat's live metadata has a
// favorites array, creating one in place when absent. Returns a snapshot
// of the live metadata, nil when there is no chat context.
func (s *Store) EnsureFavorites() *host.Metadata {
	ok := s.ctxs.Mutate(func(a *host.ActiveContext) {
		if a.Metadata.Favorites == nil {
			log.Printf("[store] initializing favorites array for chat %q", a.ChatID)
		}
		a.Metadata.EnsureFavorites()
	})
	if !ok {
		log.Printf("[store] no active chat metadata available")
		return nil
	}
	snap := s.ctxs.SnapshotActive()
	if snap == nil {
		return nil
	}
	return snap.Metadata
}

func (s *Store) resolveTarget(targetChatFile string, opts Options) (string, *host.ActiveContext) {
	active := s.ctxs.Active()
	target := host.TrimChatExt(targetChatFile)
	if target == "" {
		target = host.TrimChatExt(opts.ViewingChat)
	}
	if target == "" && active != nil {
		target = active.ChatID
	}
	return target, active
}

// loadForWrite resolves a non-active chat's metadata and messages, from
// the session cache first, the Gateway otherwise. The returned metadata
// is always an owned copy.
func (s *Store) loadForWrite(ctx context.Context, target string, active *host.ActiveContext, opts Options) (*host.Metadata, []host.Message, error) {
	if rec := opts.Cache.Find(target); rec != nil && rec.Metadata != nil {
		if rec.Messages == nil {
			log.Printf("[store] cached chat %q has no messages, save may be incomplete", target)
		}
		return rec.Metadata.Clone(), rec.Messages, nil
	}
	if active == nil || !active.Owner.Valid() {
		return nil, nil, ErrMissingContext
	}
	log.Printf("[store] chat %q not cached, loading from host", target)
	doc, err := s.gw.FetchFullChat(ctx, active.Owner, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load chat %q: %w", target, err)
	}
	return doc.Metadata, doc.Messages, nil
}

// Add appends a new favorite for the given message to the resolved chat.
func (s *Store) Add(ctx context.Context, info MessageInfo, targetChatFile string, opts Options) (*host.FavoriteItem, error) {
	target, active := s.resolveTarget(targetChatFile, opts)
	if target == "" {
		log.Printf("[store] add favorite: cannot resolve target chat")
		return nil, ErrMissingContext
	}

	item := host.FavoriteItem{
		ID:        uuid.NewString(),
		MessageID: info.MessageID,
		Sender:    info.Sender,
		Role:      info.Role,
		Note:      "",
	}

	if active != nil && target == active.ChatID {
		if !s.ctxs.Mutate(func(a *host.ActiveContext) {
			a.Metadata.EnsureFavorites()
			a.Metadata.Favorites = append(a.Metadata.Favorites, item)
		}) {
			return nil, ErrMissingContext
		}
		s.autosave.ScheduleSave()
		return &item, nil
	}

	md, messages, err := s.loadForWrite(ctx, target, active, opts)
	if err != nil {
		return nil, err
	}
	md.EnsureFavorites()
	md.Favorites = append(md.Favorites, item)
	if err := s.gw.SaveChatMetadata(ctx, target, md, messages, opts.Cache); err != nil {
		return nil, err
	}
	return &item, nil
}

// Remove deletes a favorite by id from the resolved chat. It reports
// true only on confirmed removal; an unknown id is (false, nil), not an
// error. Removal on the active chat is confirmed in memory only, since
// its persistence path is fire-and-forget.
func (s *Store) Remove(ctx context.Context, favoriteID, targetChatFile string, opts Options) (bool, error) {
	target, active := s.resolveTarget(targetChatFile, opts)
	if target == "" {
		log.Printf("[store] remove favorite: cannot resolve target chat")
		return false, ErrMissingContext
	}

	if active != nil && target == active.ChatID {
		removed := false
		if !s.ctxs.Mutate(func(a *host.ActiveContext) {
			idx := a.Metadata.FindFavorite(favoriteID)
			if idx < 0 {
				return
			}
			a.Metadata.Favorites = append(a.Metadata.Favorites[:idx], a.Metadata.Favorites[idx+1:]...)
			removed = true
		}) {
			return false, ErrMissingContext
		}
		if !removed {
			log.Printf("[store] favorite %q not found in chat %q", favoriteID, target)
			return false, nil
		}
		s.autosave.ScheduleSave()
		return true, nil
	}

	md, messages, err := s.loadForWrite(ctx, target, active, opts)
	if err != nil {
		return false, err
	}
	idx := md.FindFavorite(favoriteID)
	if idx < 0 {
		log.Printf("[store] favorite %q not found in chat %q", favoriteID, target)
		return false, nil
	}
	md.Favorites = append(md.Favorites[:idx], md.Favorites[idx+1:]...)
	if err := s.gw.SaveChatMetadata(ctx, target, md, messages, opts.Cache); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateNote overwrites the note on a favorite. A missing favorite id is
// a logged no-op, not an error.
func (s *Store) UpdateNote(ctx context.Context, favoriteID, note, targetChatFile string, opts Options) error {
	target, active := s.resolveTarget(targetChatFile, opts)
	if target == "" {
		log.Printf("[store] update note: cannot resolve target chat")
		return ErrMissingContext
	}

	if active != nil && target == active.ChatID {
		found := false
		if !s.ctxs.Mutate(func(a *host.ActiveContext) {
			idx := a.Metadata.FindFavorite(favoriteID)
			if idx < 0 {
				return
			}
			a.Metadata.Favorites[idx].Note = note
			found = true
		}) {
			return ErrMissingContext
		}
		if !found {
			log.Printf("[store] favorite %q not found in chat %q", favoriteID, target)
			return nil
		}
		s.autosave.ScheduleSave()
		return nil
	}

	md, messages, err := s.loadForWrite(ctx, target, active, opts)
	if err != nil {
		return err
	}
	idx := md.FindFavorite(favoriteID)
	if idx < 0 {
		log.Printf("[store] favorite %q not found in chat %q", favoriteID, target)
		return nil
	}
	md.Favorites[idx].Note = note
	return s.gw.SaveChatMetadata(ctx, target, md, messages, opts.Cache)
}
