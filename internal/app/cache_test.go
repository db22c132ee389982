package app

import (
	"context"
	"testing"
	"time"

	"promptathon/internal/domain"
)

// stubStore counts store hits so tests can tell cache hits from misses.
type stubStore struct {
	users    []string
	pairs    []domain.Pair
	subs     map[string][]domain.Submission
	shortest map[string]*domain.ShortestSubmission
	configs  map[string]domain.LevelConfig
	cleared  map[string]map[string]bool
	calls    map[string]int
}

func newStubStore() *stubStore {
	return &stubStore{
		subs:     make(map[string][]domain.Submission),
		shortest: make(map[string]*domain.ShortestSubmission),
		configs:  make(map[string]domain.LevelConfig),
		cleared:  make(map[string]map[string]bool),
		calls:    make(map[string]int),
	}
}

func (s *stubStore) ListUsers(context.Context) []string {
	s.calls["users"]++
	return s.users
}

func (s *stubStore) ListClearedPairs(context.Context) []domain.Pair {
	s.calls["pairs"]++
	return s.pairs
}

func (s *stubStore) ListSubmissions(_ context.Context, level, model string) []domain.Submission {
	s.calls["subs:"+level+":"+model]++
	return s.subs[level+":"+model]
}

func (s *stubStore) IsCleared(_ context.Context, level, model, user string) bool {
	return s.cleared[level+":"+model][user]
}

func (s *stubStore) CountClearedUsers(_ context.Context, level, model string) int {
	return len(s.cleared[level+":"+model])
}

func (s *stubStore) ClearedByUser(_ context.Context, user string, pairs []domain.Pair) []domain.Pair {
	var out []domain.Pair
	for _, pair := range pairs {
		if s.cleared[pair.String()][user] {
			out = append(out, pair)
		}
	}
	return out
}

func (s *stubStore) LevelConfig(_ context.Context, level string) domain.LevelConfig {
	s.calls["config:"+level]++
	if cfg, ok := s.configs[level]; ok {
		return cfg
	}
	return domain.LevelConfig{Score: domain.DefaultLevelScore, Bonus: domain.DefaultBonusScore}
}

func (s *stubStore) ShortestSubmission(_ context.Context, level, model string) *domain.ShortestSubmission {
	s.calls["shortest:"+level+":"+model]++
	return s.shortest[level+":"+model]
}

func (s *stubStore) markCleared(pair domain.Pair, users ...string) {
	members, ok := s.cleared[pair.String()]
	if !ok {
		members = make(map[string]bool)
		s.cleared[pair.String()] = members
	}
	for _, user := range users {
		members[user] = true
	}
}

func newTestCache(store Keyspace) (*CacheManager, *time.Time) {
	caches := NewCacheManager(store, time.Minute, 30*time.Second, DefaultLevelCapacity)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	caches.clock = func() time.Time { return now }
	return caches, &now
}

func TestClearedPairsCachedUntilTTL(t *testing.T) {
	store := newStubStore()
	store.pairs = []domain.Pair{{Level: "intro", Model: "gpt-4o"}}
	caches, now := newTestCache(store)
	ctx := context.Background()

	caches.ClearedPairs(ctx)
	caches.ClearedPairs(ctx)
	if store.calls["pairs"] != 1 {
		t.Fatalf("expected 1 store fetch within TTL, got %d", store.calls["pairs"])
	}

	*now = now.Add(61 * time.Second)
	caches.ClearedPairs(ctx)
	if store.calls["pairs"] != 2 {
		t.Fatalf("expected refetch after TTL, got %d fetches", store.calls["pairs"])
	}
}

func TestSubmissionsCachedPerPair(t *testing.T) {
	store := newStubStore()
	store.subs["intro:gpt-4o"] = []domain.Submission{{Username: "alice", Prompt: "hi"}}
	caches, now := newTestCache(store)
	ctx := context.Background()

	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.Submissions(ctx, "reversal", "claude")
	if store.calls["subs:intro:gpt-4o"] != 1 {
		t.Fatalf("expected 1 fetch for intro pair, got %d", store.calls["subs:intro:gpt-4o"])
	}
	if store.calls["subs:reversal:claude"] != 1 {
		t.Fatalf("expected independent fetch per pair")
	}

	*now = now.Add(31 * time.Second)
	caches.Submissions(ctx, "intro", "gpt-4o")
	if store.calls["subs:intro:gpt-4o"] != 2 {
		t.Fatalf("expected refetch after TTL, got %d", store.calls["subs:intro:gpt-4o"])
	}
}

func TestShortestSubmissionCachesAbsence(t *testing.T) {
	store := newStubStore()
	caches, _ := newTestCache(store)
	ctx := context.Background()

	if got := caches.ShortestSubmission(ctx, "intro", "gpt-4o"); got != nil {
		t.Fatalf("expected nil shortest, got %+v", got)
	}
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")
	if store.calls["shortest:intro:gpt-4o"] != 1 {
		t.Fatalf("expected the empty result to be cached, got %d fetches", store.calls["shortest:intro:gpt-4o"])
	}
}

func TestInvalidateSubmissionsClearsShortestToo(t *testing.T) {
	store := newStubStore()
	store.pairs = []domain.Pair{{Level: "intro", Model: "gpt-4o"}}
	caches, _ := newTestCache(store)
	ctx := context.Background()

	caches.ClearedPairs(ctx)
	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")

	caches.InvalidateSubmissions()

	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")
	caches.ClearedPairs(ctx)
	if store.calls["subs:intro:gpt-4o"] != 2 {
		t.Fatalf("expected submissions refetch, got %d", store.calls["subs:intro:gpt-4o"])
	}
	if store.calls["shortest:intro:gpt-4o"] != 2 {
		t.Fatalf("expected shortest refetch, got %d", store.calls["shortest:intro:gpt-4o"])
	}
	if store.calls["pairs"] != 1 {
		t.Fatalf("cleared-pairs cache must survive a submissions invalidation")
	}
}

func TestInvalidateAllClearsEverything(t *testing.T) {
	store := newStubStore()
	store.pairs = []domain.Pair{{Level: "intro", Model: "gpt-4o"}}
	caches, _ := newTestCache(store)
	ctx := context.Background()

	caches.ClearedPairs(ctx)
	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")
	caches.LevelConfig(ctx, "intro")

	caches.InvalidateAll()

	caches.ClearedPairs(ctx)
	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")
	caches.LevelConfig(ctx, "intro")
	for _, key := range []string{"pairs", "subs:intro:gpt-4o", "shortest:intro:gpt-4o", "config:intro"} {
		if store.calls[key] != 2 {
			t.Fatalf("expected refetch of %s after InvalidateAll, got %d", key, store.calls[key])
		}
	}
}

func TestLevelConfigLRUEvictsOldest(t *testing.T) {
	store := newStubStore()
	caches := NewCacheManager(store, time.Minute, 30*time.Second, 2)
	ctx := context.Background()

	caches.LevelConfig(ctx, "a")
	caches.LevelConfig(ctx, "b")
	caches.LevelConfig(ctx, "a") // refresh a so b is now the oldest
	caches.LevelConfig(ctx, "c") // evicts b

	caches.LevelConfig(ctx, "a")
	caches.LevelConfig(ctx, "b")
	if store.calls["config:a"] != 1 {
		t.Fatalf("expected a to stay cached, got %d fetches", store.calls["config:a"])
	}
	if store.calls["config:b"] != 2 {
		t.Fatalf("expected b to be evicted and refetched, got %d fetches", store.calls["config:b"])
	}
}

func TestLevelConfigHasNoTTL(t *testing.T) {
	store := newStubStore()
	caches, now := newTestCache(store)
	ctx := context.Background()

	caches.LevelConfig(ctx, "intro")
	*now = now.Add(24 * time.Hour)
	caches.LevelConfig(ctx, "intro")
	if store.calls["config:intro"] != 1 {
		t.Fatalf("level config must only leave the cache by eviction or explicit clear")
	}
}

func TestStatsReportsSizesKeysAndTTLs(t *testing.T) {
	store := newStubStore()
	store.pairs = []domain.Pair{{Level: "intro", Model: "gpt-4o"}}
	caches, _ := newTestCache(store)
	ctx := context.Background()

	caches.ClearedPairs(ctx)
	caches.Submissions(ctx, "intro", "gpt-4o")
	caches.ShortestSubmission(ctx, "intro", "gpt-4o")
	caches.LevelConfig(ctx, "intro")

	stats := caches.Stats()
	if stats.Submissions.Size != 1 || stats.Submissions.Keys[0] != "intro:gpt-4o" {
		t.Fatalf("unexpected submissions stats: %+v", stats.Submissions)
	}
	if stats.Submissions.TTLSeconds != 30 || stats.Shortest.TTLSeconds != 30 {
		t.Fatalf("expected 30s TTLs, got %+v", stats)
	}
	if !stats.ClearedPairs.Cached || stats.ClearedPairs.Size != 1 || stats.ClearedPairs.TTLSeconds != 60 {
		t.Fatalf("unexpected cleared-pairs stats: %+v", stats.ClearedPairs)
	}
	if stats.LevelConfig.Size != 1 || stats.LevelConfig.Capacity != DefaultLevelCapacity {
		t.Fatalf("unexpected level-config stats: %+v", stats.LevelConfig)
	}
}

func TestConcurrentReadsFetchOnce(t *testing.T) {
	store := newStubStore()
	store.pairs = []domain.Pair{{Level: "intro", Model: "gpt-4o"}}
	caches, _ := newTestCache(store)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			caches.ClearedPairs(ctx)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if store.calls["pairs"] > 1 {
		t.Fatalf("expected concurrent reads deduplicated, got %d fetches", store.calls["pairs"])
	}
}

func TestCacheKeysAreSorted(t *testing.T) {
	store := newStubStore()
	caches, _ := newTestCache(store)
	ctx := context.Background()

	for _, pair := range []domain.Pair{{Level: "z", Model: "m"}, {Level: "a", Model: "m"}} {
		caches.Submissions(ctx, pair.Level, pair.Model)
	}
	stats := caches.Stats()
	want := []string{"a:m", "z:m"}
	for i, key := range stats.Submissions.Keys {
		if key != want[i] {
			t.Fatalf("expected sorted keys %v, got %v", want, stats.Submissions.Keys)
		}
	}
}
