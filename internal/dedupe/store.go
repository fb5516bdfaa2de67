package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/bakkerme/atomsplit/internal/atom"
)

// SeenStore remembers which entries of a feed were already emitted.
type SeenStore interface {
	HasSeen(ctx context.Context, feedURL, key string) (bool, error)
	MarkSeen(ctx context.Context, feedURL string, keys []string) error
	Close() error
}

// EntryKey identifies an entry across runs: its id, else its link, else its
// title. Entries with none of these have no key and are never deduplicated.
func EntryKey(e atom.Entry) string {
	for _, v := range []*string{e.ID, e.Link, e.Title} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// Unseen returns the entries not yet recorded for feedURL, preserving order.
func Unseen(ctx context.Context, store SeenStore, feedURL string, entries []atom.Entry) ([]atom.Entry, error) {
	fresh := make([]atom.Entry, 0, len(entries))
	for _, entry := range entries {
		key := EntryKey(entry)
		if key != "" {
			seen, err := store.HasSeen(ctx, feedURL, key)
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}
		}
		fresh = append(fresh, entry)
	}
	return fresh, nil
}

// Keys returns the non-empty keys of entries.
func Keys(entries []atom.Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if key := EntryKey(entry); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// MemoryStore is an in-process SeenStore.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, seen: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryStore) HasSeen(ctx context.Context, feedURL, key string) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[feedURL+"\x00"+key]
	if !ok {
		return false, nil
	}
	if m.ttl > 0 && at.Before(m.now().Add(-m.ttl)) {
		delete(m.seen, feedURL+"\x00"+key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) MarkSeen(ctx context.Context, feedURL string, keys []string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, key := range keys {
		if key != "" {
			m.seen[feedURL+"\x00"+key] = now
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
