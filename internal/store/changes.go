package store

import "sync"

// ChangeKind names the table group touched by a committed write.
type ChangeKind string

const (
	ChangeAccounts      ChangeKind = "accounts"
	ChangeFolders       ChangeKind = "folders"
	ChangeMessages      ChangeKind = "messages"
	ChangeVipSenders    ChangeKind = "vip_senders"
	ChangeNotifications ChangeKind = "notifications"
)

// Change is published after every committed write. Folder is empty for
// writes that are not scoped to one folder.
type Change struct {
	Kind      ChangeKind
	AccountID string
	Folder    string
}

// changeBufferSize is the per-subscriber queue length. A subscriber that
// falls further behind misses changes and should re-read the store.
const changeBufferSize = 64

// changeBus fans committed-write events out to subscribers.
type changeBus struct {
	mu   sync.Mutex
	subs map[<-chan Change]chan Change
}

func newChangeBus() *changeBus {
	return &changeBus{subs: make(map[<-chan Change]chan Change)}
}

func (b *changeBus) subscribe() <-chan Change {
	ch := make(chan Change, changeBufferSize)

	b.mu.Lock()
	b.subs[ch] = ch
	b.mu.Unlock()

	return ch
}

func (b *changeBus) unsubscribe(ch <-chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(c)
	}
}

// publish never blocks; a full subscriber queue drops the change.
func (b *changeBus) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *changeBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, ch := range b.subs {
		delete(b.subs, key)
		close(ch)
	}
}
