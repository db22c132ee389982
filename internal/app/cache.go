package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"promptathon/internal/domain"
)

// Keyspace is the read surface the engine needs from the store. Every method
// degrades to an empty result on failure; see the redis implementation for
// the error-absorption contract.
type Keyspace interface {
	ListUsers(ctx context.Context) []string
	ListClearedPairs(ctx context.Context) []domain.Pair
	ListSubmissions(ctx context.Context, level, model string) []domain.Submission
	IsCleared(ctx context.Context, level, model, user string) bool
	CountClearedUsers(ctx context.Context, level, model string) int
	ClearedByUser(ctx context.Context, user string, pairs []domain.Pair) []domain.Pair
	LevelConfig(ctx context.Context, level string) domain.LevelConfig
	ShortestSubmission(ctx context.Context, level, model string) *domain.ShortestSubmission
}

// Default cache tuning. Membership lists change less often than submission
// content, so they tolerate a longer staleness window.
const (
	DefaultClearedPairsTTL = time.Minute
	DefaultSubmissionsTTL  = 30 * time.Second
	DefaultLevelCapacity   = 128
)

// CacheManager fronts the Keyspace with four independently expiring caches:
// the cleared-pairs list (singleton, 60s), per-pair submission lists (30s),
// per-pair shortest submissions (30s, absence cached too), and a bounded LRU
// of level score config (no TTL, explicit clear only).
//
// Writes to the store never invalidate these caches on their own. The write
// path must call the Invalidate methods after a successful write, or stale
// data is served until the TTL runs out.
type CacheManager struct {
	store         Keyspace
	clearedTTL    time.Duration
	submissionTTL time.Duration
	clock         func() time.Time
	sf            singleflight.Group

	clearedMu      sync.RWMutex
	clearedPairs   []domain.Pair
	clearedFetched time.Time
	clearedValid   bool

	subsMu      sync.RWMutex
	submissions map[string]cachedSubmissions

	shortestMu sync.RWMutex
	shortest   map[string]cachedShortest

	levels *levelConfigCache
}

type cachedSubmissions struct {
	data      []domain.Submission
	fetchedAt time.Time
}

type cachedShortest struct {
	value     *domain.ShortestSubmission
	fetchedAt time.Time
}

func NewCacheManager(store Keyspace, clearedTTL, submissionTTL time.Duration, levelCapacity int) *CacheManager {
	if clearedTTL <= 0 {
		clearedTTL = DefaultClearedPairsTTL
	}
	if submissionTTL <= 0 {
		submissionTTL = DefaultSubmissionsTTL
	}
	if levelCapacity <= 0 {
		levelCapacity = DefaultLevelCapacity
	}
	return &CacheManager{
		store:         store,
		clearedTTL:    clearedTTL,
		submissionTTL: submissionTTL,
		clock:         time.Now,
		submissions:   make(map[string]cachedSubmissions),
		shortest:      make(map[string]cachedShortest),
		levels:        newLevelConfigCache(levelCapacity),
	}
}

// ClearedPairs returns the cached cleared level/model pairs, refreshing from
// the store when the entry is older than the cleared-pairs TTL.
func (c *CacheManager) ClearedPairs(ctx context.Context) []domain.Pair {
	c.clearedMu.RLock()
	if c.clearedValid && c.clock().Sub(c.clearedFetched) < c.clearedTTL {
		pairs := c.clearedPairs
		c.clearedMu.RUnlock()
		return pairs
	}
	c.clearedMu.RUnlock()

	result, _, _ := c.sf.Do("cleared-pairs", func() (interface{}, error) {
		c.clearedMu.RLock()
		if c.clearedValid && c.clock().Sub(c.clearedFetched) < c.clearedTTL {
			pairs := c.clearedPairs
			c.clearedMu.RUnlock()
			return pairs, nil
		}
		c.clearedMu.RUnlock()

		pairs := c.store.ListClearedPairs(ctx)

		c.clearedMu.Lock()
		c.clearedPairs = pairs
		c.clearedFetched = c.clock()
		c.clearedValid = true
		c.clearedMu.Unlock()
		return pairs, nil
	})
	return result.([]domain.Pair)
}

// Submissions returns the cached submission list for a level/model pair.
func (c *CacheManager) Submissions(ctx context.Context, level, model string) []domain.Submission {
	key := level + ":" + model

	c.subsMu.RLock()
	if entry, ok := c.submissions[key]; ok && c.clock().Sub(entry.fetchedAt) < c.submissionTTL {
		c.subsMu.RUnlock()
		return entry.data
	}
	c.subsMu.RUnlock()

	result, _, _ := c.sf.Do("submissions:"+key, func() (interface{}, error) {
		c.subsMu.RLock()
		if entry, ok := c.submissions[key]; ok && c.clock().Sub(entry.fetchedAt) < c.submissionTTL {
			c.subsMu.RUnlock()
			return entry.data, nil
		}
		c.subsMu.RUnlock()

		data := c.store.ListSubmissions(ctx, level, model)

		c.subsMu.Lock()
		c.submissions[key] = cachedSubmissions{data: data, fetchedAt: c.clock()}
		c.subsMu.Unlock()
		return data, nil
	})
	return result.([]domain.Submission)
}

// ShortestSubmission returns the cached shortest-prompt winner for a
// level/model pair. A pair with no submissions caches nil, so repeated
// leaderboard builds don't rescan an empty keyspace.
func (c *CacheManager) ShortestSubmission(ctx context.Context, level, model string) *domain.ShortestSubmission {
	key := level + ":" + model

	c.shortestMu.RLock()
	if entry, ok := c.shortest[key]; ok && c.clock().Sub(entry.fetchedAt) < c.submissionTTL {
		c.shortestMu.RUnlock()
		return entry.value
	}
	c.shortestMu.RUnlock()

	result, _, _ := c.sf.Do("shortest:"+key, func() (interface{}, error) {
		c.shortestMu.RLock()
		if entry, ok := c.shortest[key]; ok && c.clock().Sub(entry.fetchedAt) < c.submissionTTL {
			c.shortestMu.RUnlock()
			return entry.value, nil
		}
		c.shortestMu.RUnlock()

		value := c.store.ShortestSubmission(ctx, level, model)

		c.shortestMu.Lock()
		c.shortest[key] = cachedShortest{value: value, fetchedAt: c.clock()}
		c.shortestMu.Unlock()
		return value, nil
	})
	return result.(*domain.ShortestSubmission)
}

// LevelConfig returns the cached score config for a level.
func (c *CacheManager) LevelConfig(ctx context.Context, level string) domain.LevelConfig {
	if config, ok := c.levels.get(level); ok {
		return config
	}
	result, _, _ := c.sf.Do("level:"+level, func() (interface{}, error) {
		if config, ok := c.levels.get(level); ok {
			return config, nil
		}
		config := c.store.LevelConfig(ctx, level)
		c.levels.put(level, config)
		return config, nil
	})
	return result.(domain.LevelConfig)
}

// InvalidateSubmissions drops the submission-list and shortest-submission
// caches. Call after persisting a new submission.
func (c *CacheManager) InvalidateSubmissions() {
	c.subsMu.Lock()
	c.submissions = make(map[string]cachedSubmissions)
	c.subsMu.Unlock()

	c.shortestMu.Lock()
	c.shortest = make(map[string]cachedShortest)
	c.shortestMu.Unlock()
}

// InvalidateClearedPairs drops the cleared-pairs cache. Call after a user
// clears a pair for the first time.
func (c *CacheManager) InvalidateClearedPairs() {
	c.clearedMu.Lock()
	c.clearedPairs = nil
	c.clearedValid = false
	c.clearedMu.Unlock()
}

// InvalidateScoreConfig drops the level-config cache. Call after changing a
// level's score or bonus; nothing else ever refreshes it.
func (c *CacheManager) InvalidateScoreConfig() {
	c.levels.clear()
}

// InvalidateAll clears every cache: submissions, shortest submissions,
// cleared pairs, then score config.
func (c *CacheManager) InvalidateAll() {
	c.InvalidateSubmissions()
	c.InvalidateClearedPairs()
	c.InvalidateScoreConfig()
}

// CacheStats describes the current state of every cache for the debug
// surface.
type CacheStats struct {
	Submissions  KeyedCacheStats `json:"submissions"`
	Shortest     KeyedCacheStats `json:"shortestSubmissions"`
	ClearedPairs struct {
		Cached     bool `json:"cached"`
		Size       int  `json:"size"`
		TTLSeconds int  `json:"ttlSeconds"`
	} `json:"clearedPairs"`
	LevelConfig struct {
		Size     int      `json:"size"`
		Capacity int      `json:"capacity"`
		Keys     []string `json:"keys"`
	} `json:"levelConfig"`
}

type KeyedCacheStats struct {
	Size       int      `json:"size"`
	Keys       []string `json:"keys"`
	TTLSeconds int      `json:"ttlSeconds"`
}

// Stats returns a snapshot of cache sizes, keys, and expiry settings.
func (c *CacheManager) Stats() CacheStats {
	var stats CacheStats

	c.subsMu.RLock()
	stats.Submissions = KeyedCacheStats{
		Size:       len(c.submissions),
		Keys:       sortedKeys(c.submissions),
		TTLSeconds: int(c.submissionTTL / time.Second),
	}
	c.subsMu.RUnlock()

	c.shortestMu.RLock()
	stats.Shortest = KeyedCacheStats{
		Size:       len(c.shortest),
		Keys:       sortedKeysShortest(c.shortest),
		TTLSeconds: int(c.submissionTTL / time.Second),
	}
	c.shortestMu.RUnlock()

	c.clearedMu.RLock()
	stats.ClearedPairs.Cached = c.clearedValid
	stats.ClearedPairs.Size = len(c.clearedPairs)
	stats.ClearedPairs.TTLSeconds = int(c.clearedTTL / time.Second)
	c.clearedMu.RUnlock()

	stats.LevelConfig.Size = c.levels.len()
	stats.LevelConfig.Capacity = c.levels.capacity
	stats.LevelConfig.Keys = c.levels.keys()

	return stats
}

func sortedKeys(m map[string]cachedSubmissions) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysShortest(m map[string]cachedShortest) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
