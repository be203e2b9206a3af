package favorites

import (
	"context"
	"sync"
	"testing"

	"github.com/starfall-labs/favpanel/internal/host"
)

type countingSaver struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSaver) ScheduleSave() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newActiveStore(t *testing.T) (*Store, *fakeCtxs, *countingSaver) {
	t.Helper()
	ctxs := &fakeCtxs{active: &host.ActiveContext{
		Owner:    charOwner(),
		ChatID:   "current",
		Metadata: host.NewMetadata(),
		Messages: []host.Message{{"mes": "m0"}, {"mes": "m1"}},
	}}
	saver := &countingSaver{}
	gw := NewGateway(host.NewClient("http://127.0.0.1:1", ""), ctxs, nil, silentNotifier{})
	return NewStore(gw, ctxs, saver), ctxs, saver
}

func TestEnsureFavoritesIdempotent(t *testing.T) {
	store, ctxs, _ := newActiveStore(t)
	ctxs.active.Metadata.Favorites = nil

	md := store.EnsureFavorites()
	if md == nil || md.Favorites == nil {
		t.Fatalf("favorites array not initialized")
	}
	if ctxs.active.Metadata.Favorites == nil {
		t.Fatalf("live favorites array not initialized")
	}

	// The returned document is a snapshot; local edits stay local.
	md.Favorites = append(md.Favorites, host.FavoriteItem{ID: "local", MessageID: "0"})
	if len(ctxs.active.Metadata.Favorites) != 0 {
		t.Fatalf("snapshot edit leaked into the live metadata")
	}

	ctxs.active.Metadata.Favorites = []host.FavoriteItem{{ID: "keep", MessageID: "0"}}
	again := store.EnsureFavorites()
	if len(again.Favorites) != 1 || again.Favorites[0].ID != "keep" {
		t.Fatalf("repeat call altered existing favorites: %+v", again.Favorites)
	}
}

func TestEnsureFavoritesNoContext(t *testing.T) {
	store, ctxs, _ := newActiveStore(t)
	ctxs.active = nil
	if md := store.EnsureFavorites(); md != nil {
		t.Fatalf("want nil without context, got %+v", md)
	}
}

func TestAddRemoveActiveChatInverse(t *testing.T) {
	store, ctxs, saver := newActiveStore(t)

	item, err := store.Add(context.Background(), MessageInfo{MessageID: "1", Sender: "Alice", Role: host.RoleCharacter}, "", Options{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("favorite id not assigned")
	}
	if item.Note != "" {
		t.Fatalf("new favorite must start with an empty note")
	}
	if len(ctxs.active.Metadata.Favorites) != 1 {
		t.Fatalf("live metadata not mutated")
	}
	if saver.count() != 1 {
		t.Fatalf("active-chat add must schedule an autosave")
	}

	removed, err := store.Remove(context.Background(), item.ID, "", Options{})
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if len(ctxs.active.Metadata.Favorites) != 0 {
		t.Fatalf("favorite not removed from live metadata")
	}
}

func TestRemoveWithDuplicateMessageIDs(t *testing.T) {
	store, ctxs, _ := newActiveStore(t)
	ctxs.active.Metadata.Favorites = []host.FavoriteItem{
		{ID: "a", MessageID: "5", Note: "keep me"},
		{ID: "b", MessageID: "5"},
	}

	// Two favorites may point at the same message; removal is by
	// favorite id and must only take the matching instance.
	removed, err := store.Remove(context.Background(), "b", "", Options{})
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	favs := ctxs.active.Metadata.Favorites
	if len(favs) != 1 || favs[0].ID != "a" || favs[0].Note != "keep me" {
		t.Fatalf("wrong instance removed: %+v", favs)
	}
}

func TestRemoveUnknownIDIsNotAnError(t *testing.T) {
	store, _, _ := newActiveStore(t)
	removed, err := store.Remove(context.Background(), "no-such-id", "", Options{})
	if err != nil {
		t.Fatalf("unknown id must not error: %v", err)
	}
	if removed {
		t.Fatalf("nothing should have been removed")
	}
}

func TestUpdateNoteActiveChat(t *testing.T) {
	store, ctxs, saver := newActiveStore(t)
	ctxs.active.Metadata.Favorites = []host.FavoriteItem{{ID: "f1", MessageID: "0"}}

	if err := store.UpdateNote(context.Background(), "f1", "重点", "", Options{}); err != nil {
		t.Fatalf("update note: %v", err)
	}
	if ctxs.active.Metadata.Favorites[0].Note != "重点" {
		t.Fatalf("note not updated")
	}
	if saver.count() != 1 {
		t.Fatalf("note update must schedule an autosave")
	}

	// Unknown id is a logged no-op.
	if err := store.UpdateNote(context.Background(), "missing", "x", "", Options{}); err != nil {
		t.Fatalf("missing favorite must not error: %v", err)
	}
}

func TestTargetResolutionPriority(t *testing.T) {
	fh := newFakeHost()
	fh.bodies["explicit"] = `[{"user_name":"U","chat_metadata":{"favorites":[]}},{"mes":"a"}]`
	srv := fh.server(t)

	ctxs := &fakeCtxs{active: &host.ActiveContext{
		Owner:    charOwner(),
		ChatID:   "current",
		Metadata: host.NewMetadata(),
	}}
	saver := &countingSaver{}
	gw := NewGateway(host.NewClient(srv.URL, ""), ctxs, nil, silentNotifier{})
	store := NewStore(gw, ctxs, saver)

	viewingMD := host.NewMetadata()
	cache := NewCache([]*ChatRecord{
		{FileName: "viewing", Metadata: viewingMD, Messages: []host.Message{{"mes": "v"}}},
	})
	opts := Options{Cache: cache, ViewingChat: "viewing"}

	// Explicit target beats the viewing chat: the explicit chat is not
	// cached, so the store fetches and saves it through the host.
	if _, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "explicit", opts); err != nil {
		t.Fatalf("explicit add: %v", err)
	}
	save := fh.lastSave(t)
	if save["file_name"] != "explicit" {
		t.Fatalf("explicit target ignored, saved %v", save["file_name"])
	}

	// No explicit target: the viewing chat wins over the active chat.
	if _, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "", opts); err != nil {
		t.Fatalf("viewing add: %v", err)
	}
	save = fh.lastSave(t)
	if save["file_name"] != "viewing" {
		t.Fatalf("viewing target ignored, saved %v", save["file_name"])
	}
	if len(cache.Find("viewing").Favorites()) != 1 {
		t.Fatalf("cache not updated after successful save")
	}
	// Source record was cloned for the write; the original object the
	// cache held before the save stays unchanged.
	if len(viewingMD.Favorites) != 0 {
		t.Fatalf("non-active write mutated the cached metadata in place")
	}

	// No explicit target, no viewing chat: the active chat wins and the
	// write goes through the live metadata plus autosave, not the host.
	savesBefore := len(fh.saves)
	if _, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "", Options{}); err != nil {
		t.Fatalf("active add: %v", err)
	}
	if len(fh.saves) != savesBefore {
		t.Fatalf("active-chat add must not write through the gateway")
	}
	if saver.count() != 1 {
		t.Fatalf("active-chat add must schedule an autosave")
	}
	if len(ctxs.active.Metadata.Favorites) != 1 {
		t.Fatalf("live metadata not mutated")
	}
}

func TestFailedSaveSurfacesErrorAndSkipsCache(t *testing.T) {
	fh := newFakeHost()
	fh.failSave = true
	srv := fh.server(t)

	ctxs := &fakeCtxs{active: &host.ActiveContext{
		Owner:    charOwner(),
		ChatID:   "current",
		Metadata: host.NewMetadata(),
	}}
	gw := NewGateway(host.NewClient(srv.URL, ""), ctxs, nil, silentNotifier{})
	store := NewStore(gw, ctxs, &countingSaver{})

	cache := NewCache([]*ChatRecord{
		{FileName: "viewing", Metadata: host.NewMetadata(), Messages: []host.Message{}},
	})
	_, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "viewing", Options{Cache: cache})
	if err == nil {
		t.Fatalf("expected save failure to surface")
	}
	if len(cache.Find("viewing").Favorites()) != 0 {
		t.Fatalf("failed save must leave the cache untouched")
	}
}

func TestConcurrentActiveMutationAndPersist(t *testing.T) {
	fh := newFakeHost()
	srv := fh.server(t)

	ctxs := host.NewContextState()
	ctxs.Set(&host.ActiveContext{
		Owner:    charOwner(),
		ChatID:   "current",
		UserName: "U",
		Metadata: host.NewMetadata(),
		Messages: []host.Message{{"mes": "m0"}},
	})
	gw := NewGateway(host.NewClient(srv.URL, ""), ctxs, nil, silentNotifier{})
	store := NewStore(gw, ctxs, &countingSaver{})

	// Handler writes append to the live favorites while the autosave
	// goroutine marshals the document; the snapshot discipline keeps the
	// two from observing each other mid-mutation.
	const writes = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			if _, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "", Options{}); err != nil {
				t.Errorf("add: %v", err)
				return
			}
		}
	}()
	for i := 0; i < writes; i++ {
		if err := gw.PersistActiveChat(context.Background()); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
	<-done

	if got := len(ctxs.Active().Metadata.Favorites); got != writes {
		t.Fatalf("want %d favorites after the burst, got %d", writes, got)
	}
}

func TestAddWithoutAnyContext(t *testing.T) {
	store, ctxs, _ := newActiveStore(t)
	ctxs.active = nil
	if _, err := store.Add(context.Background(), MessageInfo{MessageID: "0"}, "", Options{}); err != ErrMissingContext {
		t.Fatalf("want ErrMissingContext, got %v", err)
	}
}
