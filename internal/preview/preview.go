// Package preview materializes a chat's favorites into a dedicated,
// reusable read-only chat on the host, one per owner.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/host"
	"github.com/starfall-labs/favpanel/internal/settings"
)

const previewPrefix = "[收藏预览] "

var (
	// ErrNoFavorites aborts a preview attempt before any chat switch.
	ErrNoFavorites = errors.New("preview: no favorites to preview")

	// ErrSwitchTimeout means the host never confirmed the switch to the
	// preview chat within the bounded wait.
	ErrSwitchTimeout = errors.New("preview: chat switch timed out")

	// ErrEnvironmentChanged means the active chat moved away from the
	// preview target mid-flow.
	ErrEnvironmentChanged = errors.New("preview: active chat changed unexpectedly")
)

// OriginalContext is where "return" goes back to.
type OriginalContext struct {
	CharacterID string `json:"character_id,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	ChatID      string `json:"chat_id"`
}

// State is the preview machine's whole state. Active implies both
// OriginalContext and PreviewChatID are set.
type State struct {
	Active          bool             `json:"active"`
	OriginalContext *OriginalContext `json:"original_context,omitempty"`
	PreviewChatID   string           `json:"preview_chat_id,omitempty"`
}

// Controller drives the Idle -> Switching -> Active -> Idle flow. It
// owns its State; nothing else mutates it.
type Controller struct {
	mu    sync.Mutex
	state State

	gw       *favorites.Gateway
	store    *favorites.Store
	ctxs     host.ContextProvider
	life     host.Lifecycle
	events   host.ChatEvents
	notify   host.Notifier
	registry *settings.Store

	batchSize     int
	batchPause    time.Duration
	switchTimeout time.Duration
	clearTimeout  time.Duration
	pollInterval  time.Duration
}

func NewController(gw *favorites.Gateway, store *favorites.Store, ctxs host.ContextProvider, life host.Lifecycle, events host.ChatEvents, notify host.Notifier, registry *settings.Store) *Controller {
	if notify == nil {
		notify = host.LogNotifier{}
	}
	return &Controller{
		gw:       gw,
		store:    store,
		ctxs:     ctxs,
		life:     life,
		events:   events,
		notify:   notify,
		registry: registry,

		batchSize:     20,
		batchPause:    50 * time.Millisecond,
		switchTimeout: 5 * time.Second,
		clearTimeout:  2 * time.Second,
		pollInterval:  50 * time.Millisecond,
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	if st.OriginalContext != nil {
		oc := *st.OriginalContext
		st.OriginalContext = &oc
	}
	return st
}

// Run consumes chat-changed notifications until ctx ends, force-closing
// the preview when the user navigates away through unrelated host UI.
func (c *Controller) Run(ctx context.Context) {
	ch, cancel := c.events.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case chatID := <-ch:
			c.HandleChatChanged(chatID)
		}
	}
}

// HandleChatChanged is the safety net: while a preview is active, any
// switch to a chat other than the preview chat drops back to Idle.
func (c *Controller) HandleChatChanged(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Active || c.state.PreviewChatID == "" {
		return
	}
	if host.TrimChatExt(chatID) != host.TrimChatExt(c.state.PreviewChatID) {
		log.Printf("[preview] chat changed away from preview (%s -> %s), leaving preview mode", c.state.PreviewChatID, chatID)
		c.state = State{}
	}
}

// Start begins a preview of the given chat's favorites; an empty
// chatFile previews the active chat. Any failure mid-flow unwinds to
// Idle with the state cleared.
func (c *Controller) Start(ctx context.Context, chatFile string, cache *favorites.Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notify.Info("正在准备预览聊天...")

	// The fill below iterates messages while the host keeps pushing
	// context updates, so the source is a snapshot, not the live mirror.
	initial := c.ctxs.SnapshotActive()
	if initial == nil || !initial.Owner.Valid() {
		c.notify.Error("请先选择一个角色或群聊")
		return favorites.ErrMissingContext
	}
	owner := initial.Owner
	target := host.TrimChatExt(chatFile)
	if target == "" {
		target = initial.ChatID
	}

	// Reset for re-entry before anything async runs.
	c.state = State{OriginalContext: &OriginalContext{
		CharacterID: owner.CharacterID,
		GroupID:     owner.GroupID,
		ChatID:      initial.ChatID,
	}}

	favs, messages, err := c.resolveSource(ctx, initial, target, cache)
	if err != nil {
		c.state = State{}
		return err
	}

	previewID, err := c.resolvePreviewChat(ctx, initial, owner)
	if err != nil {
		c.notify.Error("切换到预览聊天时出错或超时，请重试")
		c.state = State{}
		return err
	}

	previewID = c.renamePreviewChat(ctx, owner, previewID, c.sourceDisplayName(initial, target))

	if err := c.life.ClearChat(ctx); err != nil {
		log.Printf("[preview] clear chat failed: %v", err)
	}
	if !WaitFor(ctx, c.clearTimeout, c.pollInterval, func() bool {
		a := c.ctxs.Active()
		return a != nil && len(a.Messages) == 0
	}) {
		// Non-fatal: filling proceeds even when the clear was never
		// observed.
		c.notify.Warning("清空聊天时可能超时，继续尝试填充消息...")
	}

	if a := c.ctxs.Active(); a == nil || a.ChatID != host.TrimChatExt(previewID) {
		c.notify.Error("预览聊天环境发生意外变化，填充操作中止。请重试。")
		c.state = State{}
		return ErrEnvironmentChanged
	}

	c.state.Active = true
	c.state.PreviewChatID = previewID

	added, err := c.fill(ctx, previewID, favs, messages)
	if err != nil {
		c.notify.Error("预览聊天环境发生意外变化，填充操作中止。请重试。")
		c.state = State{}
		return err
	}

	if added > 0 {
		c.notify.Success(fmt.Sprintf("已在预览模式下显示 %d 条收藏消息", added))
	} else {
		c.notify.Warning("准备了收藏消息，但未能成功添加到预览中。")
	}
	return nil
}

// Return switches back to the original chat and drops to Idle. The
// state is cleared even when the switch fails; a broken return must not
// leave the machine wedged in Active.
func (c *Controller) Return(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	oc := c.state.OriginalContext
	if oc == nil {
		c.notify.Warning("无法返回原聊天，上下文信息已丢失")
		c.state = State{}
		return favorites.ErrMissingContext
	}
	c.state.Active = false

	owner := host.Owner{CharacterID: oc.CharacterID, GroupID: oc.GroupID}
	if a := c.ctxs.Active(); a != nil && sameIdentity(a.Owner, owner) {
		owner = a.Owner
	}

	err := c.life.SwitchChat(ctx, owner, oc.ChatID)
	c.state = State{}
	if err != nil {
		c.notify.Error("返回原聊天时发生错误")
		return err
	}
	c.notify.Success("已返回到原始聊天")
	return nil
}

func sameIdentity(a, b host.Owner) bool {
	return a.CharacterID == b.CharacterID && a.GroupID == b.GroupID
}

// resolveSource finds the favorites and messages to preview: the active
// chat's live metadata, a cache record, or a gateway fetch, in that
// order.
func (c *Controller) resolveSource(ctx context.Context, initial *host.ActiveContext, target string, cache *favorites.Cache) ([]host.FavoriteItem, []host.Message, error) {
	if target == initial.ChatID {
		md := c.store.EnsureFavorites()
		if md == nil || len(md.Favorites) == 0 {
			c.notify.Warning("当前聊天没有收藏的消息可以预览")
			return nil, nil, ErrNoFavorites
		}
		return md.Favorites, initial.Messages, nil
	}

	if rec := cache.Find(target); rec != nil && rec.Metadata != nil {
		if len(rec.Favorites()) == 0 {
			c.notify.Warning(fmt.Sprintf("聊天 %q 没有收藏的消息或无法加载。", target))
			return nil, nil, ErrNoFavorites
		}
		return append([]host.FavoriteItem(nil), rec.Favorites()...), rec.Messages, nil
	}

	doc, err := c.gw.FetchFullChat(ctx, initial.Owner, target, nil)
	if err != nil {
		c.notify.Warning(fmt.Sprintf("聊天 %q 没有收藏的消息或无法加载。", target))
		return nil, nil, err
	}
	if len(doc.Metadata.Favorites) == 0 {
		c.notify.Warning(fmt.Sprintf("聊天 %q 没有收藏的消息或无法加载。", target))
		return nil, nil, ErrNoFavorites
	}
	return doc.Metadata.Favorites, doc.Messages, nil
}

// resolvePreviewChat switches to the owner's tracked preview chat,
// creating and registering one when none exists, then waits for the
// host to confirm the switch.
func (c *Controller) resolvePreviewChat(ctx context.Context, initial *host.ActiveContext, owner host.Owner) (string, error) {
	key := owner.PreviewKey()
	existing, err := c.registry.PreviewChatID(ctx, key)
	if err != nil {
		log.Printf("[preview] preview registry read failed: %v", err)
		existing = ""
	}

	previewID := host.TrimChatExt(existing)
	if previewID != "" {
		if initial.ChatID != previewID {
			if err := c.life.SwitchChat(ctx, owner, previewID); err != nil {
				return "", err
			}
		}
	} else {
		newID, err := c.life.NewChat(ctx, owner)
		if err != nil {
			return "", err
		}
		previewID = host.TrimChatExt(newID)
		if err := c.registry.SetPreviewChatID(ctx, key, previewID); err != nil {
			log.Printf("[preview] preview registry write failed: %v", err)
		}
	}

	if !c.waitForActiveChat(ctx, previewID) {
		return "", ErrSwitchTimeout
	}
	return previewID, nil
}

func (c *Controller) sourceDisplayName(initial *host.ActiveContext, target string) string {
	if target == initial.ChatID && initial.ChatName != "" {
		return initial.ChatName
	}
	return target
}

// renamePreviewChat gives the preview chat its prefixed name, skipping
// the write when the name already matches. Rename failure keeps the old
// name and does not abort the flow.
func (c *Controller) renamePreviewChat(ctx context.Context, owner host.Owner, previewID, sourceName string) string {
	wantName := previewPrefix + sourceName
	current := c.ctxs.Active()
	currentName := previewID
	if current != nil && current.ChatName != "" {
		currentName = current.ChatName
	}
	if currentName == wantName {
		return previewID
	}

	if err := c.life.RenameChat(ctx, previewID, wantName); err != nil {
		log.Printf("[preview] rename preview chat failed: %v", err)
		c.notify.Error("重命名预览聊天失败")
		return previewID
	}

	renamedID := host.TrimChatExt(wantName)
	if err := c.registry.SetPreviewChatID(ctx, owner.PreviewKey(), renamedID); err != nil {
		log.Printf("[preview] preview registry write failed: %v", err)
	}
	// Soft wait for the mirror to reflect the rename; the pre-fill
	// identity check will catch a host that never did.
	WaitFor(ctx, c.clearTimeout, c.pollInterval, func() bool {
		a := c.ctxs.Active()
		return a != nil && a.ChatID == renamedID
	})
	return renamedID
}

// waitForActiveChat blocks until the host reports chatID as active,
// subscribing before the first check so no notification is lost.
func (c *Controller) waitForActiveChat(ctx context.Context, chatID string) bool {
	chatID = host.TrimChatExt(chatID)
	ch, cancel := c.events.Subscribe()
	defer cancel()

	if a := c.ctxs.Active(); a != nil && a.ChatID == chatID {
		return true
	}
	deadline := time.NewTimer(c.switchTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case id := <-ch:
			if host.TrimChatExt(id) == chatID {
				return true
			}
		}
	}
}

// fill inserts the resolved favorite messages into the preview chat in
// batches. The batching only paces the host's per-message insertion
// path; correctness rests on the identity re-check done per batch.
func (c *Controller) fill(ctx context.Context, previewID string, favs []host.FavoriteItem, messages []host.Message) (int, error) {
	var toFill []host.Message
	for _, fav := range host.SortFavorites(favs) {
		idx := host.MessageIndex(fav, messages)
		if idx < 0 {
			log.Printf("[preview] favorite message %q not found, skipping", fav.MessageID)
			continue
		}
		m := messages[idx].Clone()
		extra, _ := m["extra"].(map[string]any)
		if extra == nil {
			extra = map[string]any{}
		}
		if _, ok := extra["swipes"]; !ok {
			extra["swipes"] = []any{}
		}
		m["extra"] = extra
		toFill = append(toFill, m)
	}

	added := 0
	for i := 0; i < len(toFill); i += c.batchSize {
		if a := c.ctxs.Active(); a == nil || a.ChatID != host.TrimChatExt(previewID) {
			return added, ErrEnvironmentChanged
		}
		end := i + c.batchSize
		if end > len(toFill) {
			end = len(toFill)
		}
		for _, m := range toFill[i:end] {
			if err := c.life.AppendMessage(ctx, m); err != nil {
				log.Printf("[preview] append message failed: %v", err)
				continue
			}
			added++
		}
		if end < len(toFill) {
			select {
			case <-ctx.Done():
				return added, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}
	}
	return added, nil
}
