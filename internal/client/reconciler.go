package client

import (
	"sort"
	"sync"
	"time"

	"discussion-service/internal/models"
)

// Target identifies the conversation a client is viewing: exactly one of
// TopicID or ChatID.
type Target struct {
	TopicID int
	ChatID  int
}

// Matches reports whether a message belongs to this conversation. Stale
// async responses for a previously viewed conversation fail this check and
// never reach the merged list.
func (t Target) Matches(msg models.Message) bool {
	if t.TopicID != 0 {
		return msg.TopicID != nil && *msg.TopicID == t.TopicID
	}
	return t.ChatID != 0 && msg.ChatID == t.ChatID
}

// Room returns the fan-out room key for the conversation.
func (t Target) Room() string {
	if t.TopicID != 0 {
		return models.TopicRoom(t.TopicID)
	}
	return models.ChatRoom(t.ChatID)
}

// Entry is one row of the conversation view: a persisted message, or a
// pending optimistic echo awaiting server acknowledgment.
type Entry struct {
	Message models.Message
	TempID  string
	Pending bool
}

// Reconciler folds the two racing sources, paginated history and the live
// stream, into a single deduplicated (created_at, id)-ordered message list
// for the currently viewed conversation only.
type Reconciler struct {
	mu       sync.Mutex
	target   Target
	knownIDs map[int]struct{}
	entries  []Entry
	blocked  map[int]struct{}
}

// NewReconciler creates an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		knownIDs: make(map[int]struct{}),
		blocked:  make(map[int]struct{}),
	}
}

// SwitchConversation atomically resets all view state for a new target.
// Responses still in flight for the old target are dropped on arrival by the
// target comparison in MergeHistoryPage/OnLiveMessage.
func (r *Reconciler) SwitchConversation(target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
	r.knownIDs = make(map[int]struct{})
	r.entries = nil
}

// Conversation returns the currently viewed target.
func (r *Reconciler) Conversation() Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// SetBlocked installs the set of senders whose messages the local user has
// blocked. Blocked messages are remembered as seen but not displayed.
func (r *Reconciler) SetBlocked(userIDs []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		r.blocked[id] = struct{}{}
	}
}

// MergeHistoryPage merges one fetched history page. The first page replaces
// persisted state wholesale (pending echoes survive); later pages prepend
// only unseen messages. The merged list is re-sorted after every merge.
func (r *Reconciler) MergeHistoryPage(target Target, page int, msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if target != r.target {
		return
	}

	if page <= 1 {
		pending := make([]Entry, 0)
		for _, e := range r.entries {
			if e.Pending {
				pending = append(pending, e)
			}
		}
		r.entries = pending
		r.knownIDs = make(map[int]struct{})
	}

	for _, msg := range msgs {
		if !r.target.Matches(msg) {
			continue
		}
		if _, seen := r.knownIDs[msg.ID]; seen {
			continue
		}
		r.knownIDs[msg.ID] = struct{}{}
		if _, hidden := r.blocked[msg.SenderID]; hidden {
			continue
		}
		r.entries = append(r.entries, Entry{Message: msg})
	}
	r.resort()
}

// OnLiveMessage folds one broadcast message into the view. Duplicates are
// discarded by id. Returns true when the message was newly inserted.
func (r *Reconciler) OnLiveMessage(msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.target.Matches(msg) {
		return false
	}
	if _, seen := r.knownIDs[msg.ID]; seen {
		return false
	}
	r.knownIDs[msg.ID] = struct{}{}
	if _, hidden := r.blocked[msg.SenderID]; hidden {
		return false
	}
	r.entries = append(r.entries, Entry{Message: msg})
	r.resort()
	return true
}

// AddLocalEcho inserts a pending optimistic entry.
func (r *Reconciler) AddLocalEcho(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Pending = true
	r.entries = append(r.entries, e)
	r.resort()
}

// ResolveTemp replaces a pending echo with the server-assigned message. If a
// live broadcast already delivered the message, the echo is simply dropped.
func (r *Reconciler) ResolveTemp(tempID string, msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropTempLocked(tempID)
	if _, seen := r.knownIDs[msg.ID]; seen {
		return
	}
	if !r.target.Matches(msg) {
		return
	}
	r.knownIDs[msg.ID] = struct{}{}
	r.entries = append(r.entries, Entry{Message: msg})
	r.resort()
}

// RemoveTemp drops a pending echo without a replacement.
func (r *Reconciler) RemoveTemp(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropTempLocked(tempID)
}

func (r *Reconciler) dropTempLocked(tempID string) {
	for i, e := range r.entries {
		if e.Pending && e.TempID == tempID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// HasDelivered reports whether a message matching a pending send already
// arrived via broadcast: by client key when present, else by sender and
// content within the grace window.
func (r *Reconciler) HasDelivered(clientKey string, senderID int, content string, since time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Pending {
			continue
		}
		msg := e.Message
		if clientKey != "" && msg.ClientKey == clientKey {
			return true
		}
		if msg.ClientKey == "" && msg.SenderID == senderID && msg.Content == content && !msg.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}

// Entries snapshots the current view, pending echoes included.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages snapshots the persisted (non-pending) messages in view order.
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.Pending {
			out = append(out, e.Message)
		}
	}
	return out
}

// resort restores (created_at, id) order. Pending echoes have no id yet and
// sort after persisted messages with the same timestamp.
func (r *Reconciler) resort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if !a.Message.CreatedAt.Equal(b.Message.CreatedAt) {
			return a.Message.CreatedAt.Before(b.Message.CreatedAt)
		}
		if a.Pending != b.Pending {
			return !a.Pending
		}
		return a.Message.ID < b.Message.ID
	})
}
