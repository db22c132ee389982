package app

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"promptathon/internal/domain"
)

var medals = []string{"🥇", "🥈", "🥉"}

// Leaderboard computes the ranked scoreboard on demand from the store.
//
// Scoring: each cleared level/model pair is worth the level's score split
// evenly (integer floor) among everyone who cleared it; the fraction lost to
// rounding is dropped, not redistributed. Independently, the author of the
// shortest prompt for a pair earns the level's bonus, whether or not they
// cleared it.
type Leaderboard struct {
	store  Keyspace
	caches *CacheManager
	log    zerolog.Logger
}

func NewLeaderboard(store Keyspace, caches *CacheManager, log zerolog.Logger) *Leaderboard {
	return &Leaderboard{store: store, caches: caches, log: log}
}

// Caches exposes the cache manager for invalidation and the debug surface.
func (l *Leaderboard) Caches() *CacheManager {
	return l.caches
}

// Build computes the full leaderboard. Users are always enumerated live;
// cleared pairs, shortest submissions, and per-level bonus values are
// precomputed once per build so per-user scoring stays cheap. An empty store
// yields an empty slice.
func (l *Leaderboard) Build(ctx context.Context) []domain.LeaderboardEntry {
	users := l.store.ListUsers(ctx)
	if len(users) == 0 {
		return nil
	}

	pairs := l.caches.ClearedPairs(ctx)

	shortestByPair := make(map[string]*domain.ShortestSubmission, len(pairs))
	bonusByLevel := make(map[string]int)
	for _, pair := range pairs {
		shortestByPair[pair.String()] = l.caches.ShortestSubmission(ctx, pair.Level, pair.Model)
		if _, ok := bonusByLevel[pair.Level]; !ok {
			bonusByLevel[pair.Level] = l.caches.LevelConfig(ctx, pair.Level).Bonus
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, user := range users {
		score, cleared, bonus := l.scoreUser(ctx, user, pairs, shortestByPair, bonusByLevel)
		entries = append(entries, domain.LeaderboardEntry{
			Username: user,
			Score:    score,
			Cleared:  cleared,
			Bonus:    bonus,
		})
	}

	// Stable sort over the alphabetical user enumeration: equal scores rank
	// in username order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if i < len(medals) {
			entries[i].Medal = medals[i]
			entries[i].DisplayName = medals[i] + " " + entries[i].Username
		} else {
			entries[i].DisplayName = entries[i].Username
		}
	}

	l.log.Debug().Int("users", len(users)).Int("pairs", len(pairs)).Msg("leaderboard built")
	return entries
}

func (l *Leaderboard) scoreUser(
	ctx context.Context,
	user string,
	pairs []domain.Pair,
	shortestByPair map[string]*domain.ShortestSubmission,
	bonusByLevel map[string]int,
) (int, []domain.Pair, []domain.Pair) {
	total := 0
	var bonusPairs []domain.Pair

	for _, pair := range pairs {
		if l.store.IsCleared(ctx, pair.Level, pair.Model, user) {
			clearers := l.store.CountClearedUsers(ctx, pair.Level, pair.Model)
			if clearers > 0 {
				total += l.caches.LevelConfig(ctx, pair.Level).Score / clearers
			}
		}

		shortest := shortestByPair[pair.String()]
		if shortest != nil && shortest.Username == user {
			if bonus := bonusByLevel[pair.Level]; bonus > 0 {
				bonusPairs = append(bonusPairs, pair)
				total += bonus
			}
		}
	}

	// The display list of cleared pairs is tracked independently of scoring.
	cleared := l.store.ClearedByUser(ctx, user, pairs)
	return total, cleared, bonusPairs
}
