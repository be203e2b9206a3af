package favorites

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/starfall-labs/favpanel/internal/host"
)

// DocCache caches raw chat documents fetched from the host, keyed by
// owner and chat file. Entries are dropped on every write to that chat.
type DocCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
	Delete(ctx context.Context, key string)
}

// Gateway is the panel's only path to the host's chat persistence:
// fetch a full chat, enumerate all chats of the active owner, and
// overwrite a non-active chat wholesale.
type Gateway struct {
	client *host.Client
	ctxs   host.ContextProvider
	docs   DocCache
	notify host.Notifier
}

func NewGateway(client *host.Client, ctxs host.ContextProvider, docs DocCache, notify host.Notifier) *Gateway {
	if notify == nil {
		notify = host.LogNotifier{}
	}
	return &Gateway{client: client, ctxs: ctxs, docs: docs, notify: notify}
}

func docKey(owner host.Owner, fileName string) string {
	if owner.IsGroup() {
		return "group:" + owner.GroupID + ":" + fileName
	}
	return "char:" + owner.CharacterID + ":" + fileName
}

func sameOwner(a, b host.Owner) bool {
	if a.IsGroup() != b.IsGroup() {
		return false
	}
	if a.IsGroup() {
		return a.GroupID == b.GroupID
	}
	return a.CharacterID == b.CharacterID
}

// FetchFullChat fetches one chat and normalizes it into a Document.
//
// Metadata priority once messages are in hand: the live in-memory
// metadata when the requested chat is the active one, then a metadata
// blob supplied by the caller from a prior listing, then whatever the
// fetch response carried. The result always has a non-nil favorites
// array; the only error conditions are a missing owner (caller contract
// violation) and transport failure.
func (g *Gateway) FetchFullChat(ctx context.Context, owner host.Owner, fileName string, provided *host.Metadata) (*host.Document, error) {
	if !owner.Valid() {
		return nil, ErrMissingContext
	}
	fileName = host.TrimChatExt(fileName)

	key := docKey(owner, fileName)
	raw, cached := g.docGet(ctx, key)
	if !cached {
		var err error
		raw, err = g.client.GetChat(ctx, owner, fileName)
		if err != nil {
			return nil, err
		}
		g.docSet(ctx, key, raw)
	}

	doc := host.DecodeChatBody(raw)

	switch live := g.ctxs.SnapshotActive(); {
	case live != nil && sameOwner(live.Owner, owner) && live.ChatID == fileName:
		doc.Metadata = live.Metadata
	case provided != nil:
		doc.Metadata = provided.Clone()
	}
	doc.Metadata.EnsureFavorites()
	return doc, nil
}

// ListAllChatFavorites lists every chat of the active owner and fetches
// each in full, dropping any cached document first so a freshly opened
// browse session always reflects the host's current state. Chats that
// fail individually are skipped with a log; only a missing owner or a
// failed listing empties the result, and both yield an empty slice
// rather than an error. The active chat sorts first, the rest
// lexicographically by file name.
func (g *Gateway) ListAllChatFavorites(ctx context.Context) ([]*ChatRecord, error) {
	active := g.ctxs.Active()
	if active == nil || !active.Owner.Valid() {
		log.Printf("[gateway] no active character or group, nothing to list")
		return []*ChatRecord{}, nil
	}
	owner := active.Owner

	descs, err := g.client.ListChats(ctx, owner)
	if err != nil {
		log.Printf("[gateway] list chats failed: %v", err)
		return []*ChatRecord{}, nil
	}

	records := make([]*ChatRecord, 0, len(descs))
	for _, d := range descs {
		if d.FileName == "" {
			log.Printf("[gateway] chat listing entry missing file_name, skipping")
			continue
		}
		provided := host.MetadataFromListing(d.Raw)
		g.docDelete(ctx, docKey(owner, host.TrimChatExt(d.FileName)))
		doc, err := g.FetchFullChat(ctx, owner, d.FileName, provided)
		if err != nil {
			log.Printf("[gateway] fetch chat %q failed, skipping: %v", d.FileName, err)
			continue
		}
		records = append(records, &ChatRecord{
			FileName:    d.FileName,
			DisplayName: d.FileName,
			Metadata:    doc.Metadata,
			Messages:    doc.Messages,
			IsGroup:     owner.IsGroup(),
			CharacterID: owner.CharacterID,
			GroupID:     owner.GroupID,
		})
	}

	activeChat := active.ChatID
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].FileName, records[j].FileName
		if a == activeChat && b != activeChat {
			return true
		}
		if b == activeChat && a != activeChat {
			return false
		}
		return a < b
	})
	return records, nil
}

// SaveChatMetadata persists a metadata document for a specific,
// non-active chat by overwriting the whole stored file: an envelope
// record first, then every message verbatim. No merge, no concurrency
// check. On success the matching cache entry, when given, is
// deep-replaced. A failed write is surfaced to the user; in-memory
// mutations the caller already applied are not rolled back, so state can
// diverge until the next full reload.
func (g *Gateway) SaveChatMetadata(ctx context.Context, fileName string, md *host.Metadata, messages []host.Message, cache *Cache) error {
	active := g.ctxs.Active()
	if active == nil || !active.Owner.Valid() {
		g.notify.Error("无法保存收藏：没有激活的角色或群组。")
		return ErrMissingContext
	}
	owner := active.Owner
	fileName = host.TrimChatExt(fileName)

	if messages == nil {
		doc, err := g.FetchFullChat(ctx, owner, fileName, nil)
		if err != nil {
			g.notify.Error(fmt.Sprintf("保存聊天 %q 的收藏夹变动时发生错误：无法加载完整的聊天消息。", fileName))
			return fmt.Errorf("load messages for %q: %w", fileName, err)
		}
		messages = doc.Messages
	}

	env := g.buildEnvelope(active, md)
	if err := g.client.SaveChat(ctx, owner, fileName, env, messages); err != nil {
		g.notify.Error(fmt.Sprintf("保存聊天 %q 的收藏夹变动时发生错误。", fileName))
		return err
	}

	g.docDelete(ctx, docKey(owner, fileName))
	if cache != nil {
		cache.Replace(fileName, md, messages)
	}
	g.notify.Success(fmt.Sprintf("聊天 %q 的收藏夹变动已保存。", fileName))
	return nil
}

// PersistActiveChat writes the live active chat as-is. It backs the
// debounced autosave path; errors are logged by the caller, never
// surfaced, because that path is fire-and-forget by contract.
func (g *Gateway) PersistActiveChat(ctx context.Context) error {
	// Marshaling must not observe concurrent handler writes, so the
	// autosave works from a snapshot, never the live document.
	active := g.ctxs.SnapshotActive()
	if active == nil || !active.Owner.Valid() || active.ChatID == "" {
		return ErrMissingContext
	}
	env := g.buildEnvelope(active, active.Metadata)
	if err := g.client.SaveChat(ctx, active.Owner, active.ChatID, env, active.Messages); err != nil {
		return err
	}
	g.docDelete(ctx, docKey(active.Owner, active.ChatID))
	return nil
}

func (g *Gateway) buildEnvelope(active *host.ActiveContext, md *host.Metadata) host.Envelope {
	userName := active.UserName
	if userName == "" {
		userName = "User"
	}
	charName := active.Owner.Name
	if charName == "" {
		if active.Owner.IsGroup() {
			charName = "Group Chat"
		} else {
			charName = "Unknown"
		}
	}
	createDate := md.CreateDate()
	if createDate == "" {
		createDate = time.Now().Format("2006-01-02 15:04:05")
	}
	return host.Envelope{
		UserName:      userName,
		CharacterName: charName,
		CreateDate:    createDate,
		ChatMetadata:  md,
	}
}

func (g *Gateway) docGet(ctx context.Context, key string) ([]byte, bool) {
	if g.docs == nil {
		return nil, false
	}
	return g.docs.Get(ctx, key)
}

func (g *Gateway) docSet(ctx context.Context, key string, body []byte) {
	if g.docs != nil {
		g.docs.Set(ctx, key, body)
	}
}

func (g *Gateway) docDelete(ctx context.Context, key string) {
	if g.docs != nil {
		g.docs.Delete(ctx, key)
	}
}
