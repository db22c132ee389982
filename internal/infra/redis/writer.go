package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"promptathon/internal/domain"
)

// Writer persists submission records for the collection UI. After a
// successful write the caller is responsible for invalidating the engine's
// caches; nothing here does it implicitly.
type Writer struct {
	client redis.UniversalClient
	clock  func() time.Time
}

func NewWriter(client redis.UniversalClient) *Writer {
	return &Writer{client: client, clock: time.Now}
}

// SaveSubmission writes the submission hash, indexes it by timestamp, and,
// when cleared is set, adds the user to the pair's cleared set. All three
// writes go in one transactional pipeline. Returns the submission key.
func (w *Writer) SaveSubmission(ctx context.Context, sub domain.Submission, cleared bool) (string, error) {
	if sub.Username == "" || sub.Level == "" || sub.Model == "" {
		return "", domain.ErrEmptySubmission
	}

	at := sub.SubmittedAt
	if at.IsZero() {
		at = w.clock()
	}
	key := SubmissionKey(sub.Username, sub.Level, sub.Model, at)

	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, submissionsIndexKey, redis.Z{
		Score:  float64(at.UnixNano()) / 1e9,
		Member: key,
	})
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":            sub.Username,
		"level":               sub.Level,
		"model":               sub.Model,
		"prompt":              sub.Prompt,
		"response":            sub.Response,
		"expected_completion": sub.ExpectedCompletion,
	})
	if cleared {
		pipe.SAdd(ctx, clearedKey(sub.Level, sub.Model), sub.Username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("save submission %s: %w", key, err)
	}
	return key, nil
}
