package preview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/host"
	"github.com/starfall-labs/favpanel/internal/settings"
	"gorm.io/gorm"
)

type toastLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *toastLog) add(kind, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, kind+": "+msg)
	l.mu.Unlock()
}

func (l *toastLog) Info(msg string)    { l.add("info", msg) }
func (l *toastLog) Success(msg string) { l.add("success", msg) }
func (l *toastLog) Warning(msg string) { l.add("warning", msg) }
func (l *toastLog) Error(msg string)   { l.add("error", msg) }

func (l *toastLog) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

// fakeLife drives the mirrored context the way the host would: lifecycle
// commands land as a new active context plus a chat-changed notification.
type fakeLife struct {
	mu           sync.Mutex
	ctxs         *host.ContextState
	owner        host.Owner
	nextChatID   string
	silentSwitch bool
	renameErr    error
	switches     []string
	newCalls     int
	appended     []host.Message
}

func (f *fakeLife) activate(chatID string) {
	f.ctxs.Set(&host.ActiveContext{Owner: f.owner, ChatID: chatID, Metadata: host.NewMetadata()})
	f.ctxs.NotifyChatChanged(chatID)
}

func (f *fakeLife) SwitchChat(ctx context.Context, owner host.Owner, chatID string) error {
	f.mu.Lock()
	f.switches = append(f.switches, chatID)
	silent := f.silentSwitch
	f.mu.Unlock()
	if silent {
		return nil
	}
	f.activate(host.TrimChatExt(chatID))
	return nil
}

func (f *fakeLife) NewChat(ctx context.Context, owner host.Owner) (string, error) {
	f.mu.Lock()
	f.newCalls++
	id := f.nextChatID
	f.mu.Unlock()
	f.activate(id)
	return id, nil
}

func (f *fakeLife) RenameChat(ctx context.Context, oldChatID, newName string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	f.activate(host.TrimChatExt(newName))
	return nil
}

func (f *fakeLife) ClearChat(ctx context.Context) error {
	active := f.ctxs.Active()
	if active != nil {
		f.ctxs.Set(&host.ActiveContext{Owner: active.Owner, ChatID: active.ChatID, Metadata: host.NewMetadata()})
	}
	return nil
}

func (f *fakeLife) AppendMessage(ctx context.Context, msg host.Message) error {
	f.mu.Lock()
	f.appended = append(f.appended, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeLife) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fixture struct {
	ctrl   *Controller
	ctxs   *host.ContextState
	life   *fakeLife
	toasts *toastLog
	reg    *settings.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&settings.PreviewChat{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	reg := settings.NewStore(db)

	ctxs := host.NewContextState()
	owner := host.Owner{CharacterID: "alice", Name: "Alice", Avatar: "alice.png"}
	life := &fakeLife{ctxs: ctxs, owner: owner, nextChatID: "preview-1"}
	toasts := &toastLog{}

	gw := favorites.NewGateway(host.NewClient("http://127.0.0.1:1", ""), ctxs, nil, toasts)
	store := favorites.NewStore(gw, ctxs, noopSaver{})

	ctrl := NewController(gw, store, ctxs, life, ctxs, toasts, reg)
	ctrl.batchSize = 2
	ctrl.batchPause = time.Millisecond
	ctrl.switchTimeout = 100 * time.Millisecond
	ctrl.clearTimeout = 50 * time.Millisecond
	ctrl.pollInterval = 5 * time.Millisecond

	md := host.NewMetadata()
	md.Favorites = []host.FavoriteItem{
		{ID: "f1", MessageID: "1", Sender: "Alice", Role: host.RoleCharacter},
		{ID: "f0", MessageID: "0", Sender: "U", Role: host.RoleUser},
		{ID: "fstale", MessageID: "9", Sender: "Alice", Role: host.RoleCharacter},
	}
	ctxs.Set(&host.ActiveContext{
		Owner:    owner,
		ChatID:   "current",
		UserName: "U",
		Metadata: md,
		Messages: []host.Message{
			{"mes": "m0", "is_user": true},
			{"mes": "m1", "is_user": false},
		},
	})

	return &fixture{ctrl: ctrl, ctxs: ctxs, life: life, toasts: toasts, reg: reg}
}

type noopSaver struct{}

func (noopSaver) ScheduleSave() {}

func TestPreviewStartFillsSortedResolvableMessages(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Start(context.Background(), "", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	st := f.ctrl.Snapshot()
	if !st.Active {
		t.Fatalf("preview not active: %+v", st)
	}
	if st.OriginalContext == nil || st.OriginalContext.ChatID != "current" {
		t.Fatalf("original context wrong: %+v", st.OriginalContext)
	}
	if st.PreviewChatID != "[收藏预览] current" {
		t.Fatalf("preview chat id: %q", st.PreviewChatID)
	}

	// Stale favorite "9" is skipped; resolvable ones land in sorted order.
	if got := f.life.appendedCount(); got != 2 {
		t.Fatalf("appended: want 2 got %d", got)
	}
	if f.life.appended[0].Text() != "m0" || f.life.appended[1].Text() != "m1" {
		t.Fatalf("fill order wrong: %v", f.life.appended)
	}
	// Filled copies carry an empty swipes array.
	extra, _ := f.life.appended[0]["extra"].(map[string]any)
	if extra == nil {
		t.Fatalf("filled message missing extra")
	}
	if _, ok := extra["swipes"]; !ok {
		t.Fatalf("filled message missing swipes")
	}
	if !f.toasts.contains("已在预览模式下显示 2 条收藏消息") {
		t.Fatalf("success toast missing: %+v", f.toasts.entries)
	}

	// The preview chat is registered for reuse.
	id, err := f.reg.PreviewChatID(context.Background(), "char_alice")
	if err != nil || id != "[收藏预览] current" {
		t.Fatalf("registry: id=%q err=%v", id, err)
	}
}

func TestPreviewStartNoFavoritesNeverSwitches(t *testing.T) {
	f := newFixture(t)
	active := f.ctxs.Active()
	active.Metadata.Favorites = nil
	f.ctxs.Set(active)

	err := f.ctrl.Start(context.Background(), "", nil)
	if !errors.Is(err, ErrNoFavorites) {
		t.Fatalf("want ErrNoFavorites, got %v", err)
	}
	if len(f.life.switches) != 0 || f.life.newCalls != 0 {
		t.Fatalf("no lifecycle command may run before favorites are confirmed")
	}
	if st := f.ctrl.Snapshot(); st.Active || st.OriginalContext != nil {
		t.Fatalf("state must reset: %+v", st)
	}
	if !f.toasts.contains("当前聊天没有收藏的消息可以预览") {
		t.Fatalf("warning toast missing: %+v", f.toasts.entries)
	}
}

func TestPreviewStartWithoutOwner(t *testing.T) {
	f := newFixture(t)
	f.ctxs.Set(nil)
	if err := f.ctrl.Start(context.Background(), "", nil); !errors.Is(err, favorites.ErrMissingContext) {
		t.Fatalf("want ErrMissingContext, got %v", err)
	}
}

func TestPreviewSwitchTimeoutIsFatal(t *testing.T) {
	f := newFixture(t)
	// An already-registered preview chat forces the switch path, and the
	// host never confirms it.
	if err := f.reg.SetPreviewChatID(context.Background(), "char_alice", "pv-old"); err != nil {
		t.Fatalf("seed registry: %v", err)
	}
	f.life.silentSwitch = true

	err := f.ctrl.Start(context.Background(), "", nil)
	if !errors.Is(err, ErrSwitchTimeout) {
		t.Fatalf("want ErrSwitchTimeout, got %v", err)
	}
	if st := f.ctrl.Snapshot(); st.Active {
		t.Fatalf("state must reset on timeout")
	}
	if f.life.appendedCount() != 0 {
		t.Fatalf("nothing may be filled after a failed switch")
	}
}

func TestPreviewReusesRegisteredChat(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Start(context.Background(), "", nil); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := f.ctrl.Return(context.Background()); err != nil {
		t.Fatalf("return: %v", err)
	}

	// Returning landed on a bare mirror of the original chat; restock it.
	md := host.NewMetadata()
	md.Favorites = []host.FavoriteItem{{ID: "f0", MessageID: "0"}}
	f.ctxs.Set(&host.ActiveContext{
		Owner:    host.Owner{CharacterID: "alice", Name: "Alice", Avatar: "alice.png"},
		ChatID:   "current",
		Metadata: md,
		Messages: []host.Message{{"mes": "m0"}},
	})

	if err := f.ctrl.Start(context.Background(), "", nil); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if f.life.newCalls != 1 {
		t.Fatalf("second preview must reuse the registered chat, newCalls=%d", f.life.newCalls)
	}
}

func TestPreviewReturn(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Start(context.Background(), "", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.ctrl.Return(context.Background()); err != nil {
		t.Fatalf("return: %v", err)
	}
	if st := f.ctrl.Snapshot(); st.Active || st.OriginalContext != nil {
		t.Fatalf("state must be idle after return: %+v", st)
	}
	if active := f.ctxs.Active(); active == nil || active.ChatID != "current" {
		t.Fatalf("did not switch back to the original chat")
	}
	if !f.toasts.contains("已返回到原始聊天") {
		t.Fatalf("return toast missing: %+v", f.toasts.entries)
	}
}

func TestPreviewReturnWithoutContext(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Return(context.Background()); !errors.Is(err, favorites.ErrMissingContext) {
		t.Fatalf("want ErrMissingContext, got %v", err)
	}
}

func TestPreviewSafetyNetOnForeignChatChange(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Start(context.Background(), "", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Staying on the preview chat keeps the state.
	f.ctrl.HandleChatChanged(f.ctrl.Snapshot().PreviewChatID)
	if !f.ctrl.Snapshot().Active {
		t.Fatalf("same-chat notification must not drop the preview")
	}

	f.ctrl.HandleChatChanged("somewhere else")
	if st := f.ctrl.Snapshot(); st.Active || st.PreviewChatID != "" {
		t.Fatalf("foreign chat change must drop the preview: %+v", st)
	}
}

func TestWaitForConditions(t *testing.T) {
	ctx := context.Background()
	if !WaitFor(ctx, 50*time.Millisecond, time.Millisecond, func() bool { return true }) {
		t.Fatalf("immediate condition must succeed")
	}
	if WaitFor(ctx, 20*time.Millisecond, time.Millisecond, func() bool { return false }) {
		t.Fatalf("never-true condition must time out")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if WaitFor(cancelled, time.Second, time.Millisecond, func() bool { return false }) {
		t.Fatalf("cancelled context must fail the wait")
	}
}
