package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"promptathon/internal/domain"
)

// Keyspace enumerates and batch-fetches the domain records that live in the
// Redis keyspace. There are no secondary indices: every listing is a
// key-pattern scan, and multi-key reads go through a single pipeline.
//
// Keyspace is the error boundary of the read path. The unexported fetchers
// return errors; the exported methods absorb every store or parse error into
// an empty result plus a logged diagnostic. Callers must treat an empty
// result as "currently unavailable", not proof that nothing exists.
type Keyspace struct {
	client redis.UniversalClient
	log    zerolog.Logger
}

func NewKeyspace(client redis.UniversalClient, log zerolog.Logger) *Keyspace {
	return &Keyspace{client: client, log: log}
}

// ListUsers returns every username with at least one submission, sorted
// ascending. User enumeration is never cached.
func (k *Keyspace) ListUsers(ctx context.Context) []string {
	users, err := k.fetchUsers(ctx)
	if err != nil {
		k.log.Error().Err(err).Msg("listing users failed")
		return nil
	}
	return users
}

func (k *Keyspace) fetchUsers(ctx context.Context) ([]string, error) {
	keys, err := k.scanKeys(ctx, submissionKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		username, err := usernameFromKey(key)
		if err != nil {
			continue
		}
		seen[username] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for username := range seen {
		users = append(users, username)
	}
	// Sorted enumeration keeps leaderboard ties deterministic.
	sort.Strings(users)
	return users, nil
}

// ListClearedPairs returns the distinct level/model pairs that have at least
// one clearer, sorted by their store form.
func (k *Keyspace) ListClearedPairs(ctx context.Context) []domain.Pair {
	pairs, err := k.fetchClearedPairs(ctx)
	if err != nil {
		k.log.Error().Err(err).Msg("listing cleared pairs failed")
		return nil
	}
	return pairs
}

func (k *Keyspace) fetchClearedPairs(ctx context.Context) ([]domain.Pair, error) {
	keys, err := k.scanKeys(ctx, levelKeyPrefix+"*"+clearedKeySuffix)
	if err != nil {
		return nil, err
	}
	pairs := make([]domain.Pair, 0, len(keys))
	for _, key := range keys {
		pair, err := pairFromClearedKey(key)
		if err != nil {
			k.log.Warn().Str("key", key).Msg("skipping malformed cleared key")
			continue
		}
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs, nil
}

// ListSubmissions returns all submissions for a level/model pair, fetched in
// one pipelined round trip.
func (k *Keyspace) ListSubmissions(ctx context.Context, level, model string) []domain.Submission {
	subs, err := k.fetchSubmissions(ctx, level, model)
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Str("model", model).Msg("listing submissions failed")
		return nil
	}
	return subs
}

func (k *Keyspace) fetchSubmissions(ctx context.Context, level, model string) ([]domain.Submission, error) {
	keys, err := k.scanKeys(ctx, submissionKeyPrefix+"*:"+level+":"+model+":*")
	if err != nil {
		return nil, err
	}
	return k.fetchSubmissionHashes(ctx, keys)
}

// AllSubmissions returns every submission in the store. Used by the dataset
// export, not by the scoring path.
func (k *Keyspace) AllSubmissions(ctx context.Context) []domain.Submission {
	keys, err := k.scanKeys(ctx, submissionKeyPrefix+"*")
	if err != nil {
		k.log.Error().Err(err).Msg("listing all submissions failed")
		return nil
	}
	subs, err := k.fetchSubmissionHashes(ctx, keys)
	if err != nil {
		k.log.Error().Err(err).Msg("fetching all submissions failed")
		return nil
	}
	return subs
}

// SubmissionsBetween returns the submissions recorded in [start, end],
// resolved through the timestamp index.
func (k *Keyspace) SubmissionsBetween(ctx context.Context, start, end time.Time) []domain.Submission {
	keys, err := k.client.ZRangeByScore(ctx, submissionsIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatFloat(float64(start.UnixNano())/1e9, 'f', -1, 64),
		Max: strconv.FormatFloat(float64(end.UnixNano())/1e9, 'f', -1, 64),
	}).Result()
	if err != nil {
		k.log.Error().Err(err).Msg("time-range submission query failed")
		return nil
	}
	subs, err := k.fetchSubmissionHashes(ctx, keys)
	if err != nil {
		k.log.Error().Err(err).Msg("time-range submission fetch failed")
		return nil
	}
	return subs
}

func (k *Keyspace) fetchSubmissionHashes(ctx context.Context, keys []string) ([]domain.Submission, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := k.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipelined submission fetch: %w", err)
	}
	subs := make([]domain.Submission, 0, len(keys))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		// A key can vanish between the scan and the fetch.
		if err != nil || len(fields) == 0 {
			continue
		}
		subs = append(subs, submissionFromHash(keys[i], fields))
	}
	return subs, nil
}

func submissionFromHash(key string, fields map[string]string) domain.Submission {
	sub := domain.Submission{
		Username:           fields["username"],
		Level:              fields["level"],
		Model:              fields["model"],
		Prompt:             fields["prompt"],
		Response:           fields["response"],
		ExpectedCompletion: fields["expected_completion"],
	}
	if at, ok := timeFromKey(key); ok {
		sub.SubmittedAt = at
	}
	return sub
}

// IsCleared reports whether user has cleared the level/model pair.
func (k *Keyspace) IsCleared(ctx context.Context, level, model, user string) bool {
	member, err := k.client.SIsMember(ctx, clearedKey(level, model), user).Result()
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Str("model", model).Msg("cleared membership check failed")
		return false
	}
	return member
}

// CountClearedUsers returns how many users cleared the level/model pair.
func (k *Keyspace) CountClearedUsers(ctx context.Context, level, model string) int {
	count, err := k.client.SCard(ctx, clearedKey(level, model)).Result()
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Str("model", model).Msg("cleared count failed")
		return 0
	}
	return int(count)
}

// ListClearedUsers returns the users who cleared the level/model pair.
func (k *Keyspace) ListClearedUsers(ctx context.Context, level, model string) []string {
	users, err := k.client.SMembers(ctx, clearedKey(level, model)).Result()
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Str("model", model).Msg("cleared member listing failed")
		return nil
	}
	sort.Strings(users)
	return users
}

// ClearedByUser filters pairs down to the ones user is a member of, using one
// pipelined batch of membership checks.
func (k *Keyspace) ClearedByUser(ctx context.Context, user string, pairs []domain.Pair) []domain.Pair {
	cleared, err := k.fetchClearedByUser(ctx, user, pairs)
	if err != nil {
		k.log.Error().Err(err).Str("user", user).Msg("per-user cleared listing failed")
		return nil
	}
	return cleared
}

func (k *Keyspace) fetchClearedByUser(ctx context.Context, user string, pairs []domain.Pair) ([]domain.Pair, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	pipe := k.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(pairs))
	for i, pair := range pairs {
		cmds[i] = pipe.SIsMember(ctx, clearedKey(pair.Level, pair.Model), user)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipelined membership checks: %w", err)
	}
	var cleared []domain.Pair
	for i, cmd := range cmds {
		if member, err := cmd.Result(); err == nil && member {
			cleared = append(cleared, pairs[i])
		}
	}
	return cleared, nil
}

// LevelConfig returns the score and bonus values for a level. Missing hashes,
// missing fields, and non-numeric values all resolve to the documented
// defaults; configuration absence is not an error.
func (k *Keyspace) LevelConfig(ctx context.Context, level string) domain.LevelConfig {
	cfg := domain.LevelConfig{Score: domain.DefaultLevelScore, Bonus: domain.DefaultBonusScore}

	vals, err := k.client.HMGet(ctx, scoreKey(level), "score", "bonus").Result()
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Msg("level config fetch failed, using defaults")
		return cfg
	}
	if s, ok := vals[0].(string); ok {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			cfg.Score = n
		}
	}
	if s, ok := vals[1].(string); ok {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			cfg.Bonus = n
		}
	}
	return cfg
}

// ShortestSubmission finds the submission with the shortest prompt for a
// level/model pair, or nil when the pair has no submissions. Ties go to the
// first key enumerated. Only the prompt lengths travel over the wire; the
// winner's username is fetched in a single follow-up read.
func (k *Keyspace) ShortestSubmission(ctx context.Context, level, model string) *domain.ShortestSubmission {
	shortest, err := k.fetchShortest(ctx, level, model)
	if err != nil {
		k.log.Error().Err(err).Str("level", level).Str("model", model).Msg("shortest submission search failed")
		return nil
	}
	return shortest
}

func (k *Keyspace) fetchShortest(ctx context.Context, level, model string) (*domain.ShortestSubmission, error) {
	keys, err := k.scanKeys(ctx, submissionKeyPrefix+"*:"+level+":"+model+":*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := k.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, key, "prompt")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipelined prompt fetch: %w", err)
	}

	shortestLength := -1
	shortestIndex := -1
	for i, cmd := range cmds {
		prompt, err := cmd.Result()
		if err != nil || prompt == "" {
			continue
		}
		if length := utf8.RuneCountInString(prompt); shortestLength < 0 || length < shortestLength {
			shortestLength = length
			shortestIndex = i
		}
	}
	if shortestIndex < 0 {
		return nil, nil
	}

	username, err := k.client.HGet(ctx, keys[shortestIndex], "username").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("winner username fetch: %w", err)
	}
	if username == "" {
		return nil, nil
	}
	return &domain.ShortestSubmission{
		Username:     username,
		PromptLength: shortestLength,
		Key:          keys[shortestIndex],
	}, nil
}

func (k *Keyspace) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := k.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", pattern, err)
	}
	return keys, nil
}
