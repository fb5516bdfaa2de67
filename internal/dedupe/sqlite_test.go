package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bakkerme/atomsplit/internal/atom"
)

func str(s string) *string {
	return &s
}

func newTestStore(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "seen.db"), "", ttl)
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreTracksSeenKeysPerFeed(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	seen, err := store.HasSeen(ctx, "https://a.example/feed", "urn:1")
	if err != nil {
		t.Fatalf("has seen failed: %v", err)
	}
	if seen {
		t.Fatalf("expected unseen key")
	}

	if err := store.MarkSeen(ctx, "https://a.example/feed", []string{"urn:1", "urn:2"}); err != nil {
		t.Fatalf("mark seen failed: %v", err)
	}

	for _, key := range []string{"urn:1", "urn:2"} {
		seen, err = store.HasSeen(ctx, "https://a.example/feed", key)
		if err != nil {
			t.Fatalf("has seen failed: %v", err)
		}
		if !seen {
			t.Fatalf("expected %q to be seen", key)
		}
	}

	seen, err = store.HasSeen(ctx, "https://b.example/feed", "urn:1")
	if err != nil {
		t.Fatalf("has seen failed: %v", err)
	}
	if seen {
		t.Fatalf("keys must be scoped to their feed")
	}
}

func TestSQLiteStoreHonorsTTL(t *testing.T) {
	store := newTestStore(t, 5*time.Millisecond)
	ctx := context.Background()

	if err := store.MarkSeen(ctx, "f", []string{"ttl-id"}); err != nil {
		t.Fatalf("mark seen failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	seen, err := store.HasSeen(ctx, "f", "ttl-id")
	if err != nil {
		t.Fatalf("has seen failed: %v", err)
	}
	if seen {
		t.Fatalf("expected key to expire")
	}
}

func TestNewSQLiteStoreRejectsBadInput(t *testing.T) {
	if _, err := NewSQLiteStore("", "", 0); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if _, err := NewSQLiteStore(":memory:", "bad-name;", 0); err == nil {
		t.Fatal("expected error for invalid table name")
	}
	if _, err := NewSQLiteStore(":memory:", "", -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestUnseenSkipsRecordedEntries(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]SeenStore{
		"memory": NewMemoryStore(0),
		"sqlite": newTestStore(t, 0),
	} {
		entries := []atom.Entry{
			{ID: str("urn:1")},
			{Link: str("https://example.com/2")},
			{},
		}
		fresh, err := Unseen(ctx, store, "feed", entries)
		if err != nil {
			t.Fatalf("%s: unseen failed: %v", name, err)
		}
		keys := Keys(fresh)
		if len(fresh) != 3 || len(keys) != 2 {
			t.Fatalf("%s: expected all entries fresh, got %d entries %v keys", name, len(fresh), keys)
		}
		if err := store.MarkSeen(ctx, "feed", keys); err != nil {
			t.Fatalf("%s: mark seen failed: %v", name, err)
		}

		entries = append(entries, atom.Entry{ID: str("urn:3")})
		fresh, err = Unseen(ctx, store, "feed", entries)
		if err != nil {
			t.Fatalf("%s: unseen failed: %v", name, err)
		}
		keys = Keys(fresh)
		if len(fresh) != 2 {
			t.Fatalf("%s: expected keyless and new entry, got %+v", name, fresh)
		}
		if atom.Value(fresh[1].ID) != "urn:3" || len(keys) != 1 || keys[0] != "urn:3" {
			t.Fatalf("%s: unexpected result %+v %v", name, fresh, keys)
		}
	}
}

func TestEntryKeyFallsBack(t *testing.T) {
	cases := []struct {
		entry atom.Entry
		want  string
	}{
		{atom.Entry{ID: str("id"), Link: str("link"), Title: str("title")}, "id"},
		{atom.Entry{ID: str(""), Link: str("link")}, "link"},
		{atom.Entry{Title: str("title")}, "title"},
		{atom.Entry{}, ""},
	}
	for _, tc := range cases {
		if got := EntryKey(tc.entry); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestMemoryStoreHonorsTTL(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_ = store.MarkSeen(context.Background(), "f", []string{"k"})
	if seen, _ := store.HasSeen(context.Background(), "f", "k"); !seen {
		t.Fatal("expected key to be seen")
	}
	now = now.Add(2 * time.Minute)
	if seen, _ := store.HasSeen(context.Background(), "f", "k"); seen {
		t.Fatal("expected key to expire")
	}
}
