package host

import (
	"context"
	"sync"
	"time"
)

// ActiveContext mirrors the host's live state for the selected owner:
// the active chat id, its metadata document, and its message list.
// Active-chat writes mutate Metadata in place through ContextState.Mutate
// and schedule the host's autosave; readers that marshal or iterate the
// document take a ContextState snapshot instead of the live pointer.
type ActiveContext struct {
	Owner    Owner
	ChatID   string
	ChatName string
	UserName string
	Metadata *Metadata
	Messages []Message
}

// ContextProvider exposes the current active context, nil when no
// character or group is selected. Active returns the live object and is
// only safe for reading fields that never change after Set (owner, chat
// id); the metadata document is written through Mutate and read through
// SnapshotActive so the autosave goroutine never races handler writes.
type ContextProvider interface {
	Active() *ActiveContext
	Mutate(fn func(*ActiveContext)) bool
	SnapshotActive() *ActiveContext
}

// Autosaver schedules a persist of whatever the live metadata currently
// is. Fire-and-forget: there is no completion signal, which is why the
// active-chat write path is typed differently from the gateway's awaited
// overwrite.
type Autosaver interface {
	ScheduleSave()
}

// Lifecycle covers the host's chat lifecycle commands. SwitchChat only
// initiates the switch; completion is signaled through ChatEvents.
type Lifecycle interface {
	SwitchChat(ctx context.Context, owner Owner, chatID string) error
	NewChat(ctx context.Context, owner Owner) (string, error)
	RenameChat(ctx context.Context, oldChatID, newName string) error
	ClearChat(ctx context.Context) error
	AppendMessage(ctx context.Context, msg Message) error
}

// ChatEvents delivers chat-changed notifications.
type ChatEvents interface {
	// Subscribe returns a channel of new active chat ids and an
	// unsubscribe func. The channel is buffered; slow consumers drop
	// notifications rather than blocking the publisher.
	Subscribe() (<-chan string, func())
}

// Notifier is the transient toast surface of the presentation layer.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// ContextState is the panel's guarded mirror of the host's active
// context, fed by the host push endpoint. It doubles as the chat-changed
// event hub.
type ContextState struct {
	mu     sync.RWMutex
	active *ActiveContext

	subMu sync.Mutex
	subs  map[int]chan string
	next  int
}

func NewContextState() *ContextState {
	return &ContextState{subs: make(map[int]chan string)}
}

func (s *ContextState) Active() *ActiveContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Set replaces the mirrored context. Passing nil clears it (no owner
// selected).
func (s *ContextState) Set(active *ActiveContext) {
	s.mu.Lock()
	if active != nil {
		active.ChatID = TrimChatExt(active.ChatID)
		if active.Metadata == nil {
			active.Metadata = NewMetadata()
		}
	}
	s.active = active
	s.mu.Unlock()
}

// Mutate runs fn on the live context while holding the state lock.
// Every in-place write to the active document goes through here, which
// is what makes SnapshotActive a consistent read. Returns false when no
// context is mirrored.
func (s *ContextState) Mutate(fn func(*ActiveContext)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	if s.active.Metadata == nil {
		s.active.Metadata = NewMetadata()
	}
	fn(s.active)
	return true
}

// SnapshotActive returns a deep copy of the mirrored context, safe to
// marshal or iterate off the handler goroutine. Nil when nothing is
// mirrored.
func (s *ContextState) SnapshotActive() *ActiveContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	cp.Metadata = s.active.Metadata.Clone()
	cp.Messages = append([]Message(nil), s.active.Messages...)
	return &cp
}

// NotifyChatChanged fans a chat-changed notification out to subscribers.
func (s *ContextState) NotifyChatChanged(chatID string) {
	chatID = TrimChatExt(chatID)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- chatID:
		default:
		}
	}
}

func (s *ContextState) Subscribe() (<-chan string, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.next
	s.next++
	ch := make(chan string, 8)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// DebouncedSaver coalesces bursts of ScheduleSave calls into one
// invocation of fn after a quiet window, mirroring the host's own
// debounced metadata autosave.
type DebouncedSaver struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	fn    func()
}

func NewDebouncedSaver(delay time.Duration, fn func()) *DebouncedSaver {
	if delay <= 0 {
		delay = time.Second
	}
	return &DebouncedSaver{delay: delay, fn: fn}
}

func (d *DebouncedSaver) ScheduleSave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}
