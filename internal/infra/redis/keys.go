package redis

import (
	"strings"
	"time"

	"promptathon/internal/domain"
)

// Key-naming conventions shared with the submission UI. These are part of the
// on-disk contract and must not drift:
//
//	user_submission:{username}:{level}:{model}:{iso8601}  hash of one attempt
//	user_submissions_index                                zset key -> unix time
//	level:{level}:{model}:cleared                         set of usernames
//	level:{level}:score                                   hash: score, bonus
//	user:{username}                                       hash: password
const (
	submissionKeyPrefix = "user_submission:"
	submissionsIndexKey = "user_submissions_index"
	clearedKeySuffix    = ":cleared"
	levelKeyPrefix      = "level:"
	userKeyPrefix       = "user:"

	submissionTimeLayout = "2006-01-02T15:04:05.000000"
)

// SubmissionKey builds the identity key for one submission.
func SubmissionKey(username, level, model string, at time.Time) string {
	return submissionKeyPrefix + username + ":" + level + ":" + model + ":" + at.Format(submissionTimeLayout)
}

func clearedKey(level, model string) string {
	return levelKeyPrefix + level + ":" + model + clearedKeySuffix
}

func scoreKey(level string) string {
	return levelKeyPrefix + level + ":score"
}

func userKey(username string) string {
	return userKeyPrefix + username
}

// usernameFromKey extracts the username segment of a submission key.
func usernameFromKey(key string) (string, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 || parts[0] != "user_submission" || parts[1] == "" {
		return "", domain.ErrMalformedKey
	}
	return parts[1], nil
}

// timeFromKey extracts the submission timestamp from a submission key. The
// timestamp segment itself contains colons, so split at most five times.
func timeFromKey(key string) (time.Time, bool) {
	parts := strings.SplitN(key, ":", 5)
	if len(parts) < 5 {
		return time.Time{}, false
	}
	for _, layout := range []string{
		submissionTimeLayout,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		time.RFC3339Nano,
	} {
		if at, err := time.Parse(layout, parts[4]); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// pairFromClearedKey parses "level:{level}:{model}:cleared" into a Pair.
func pairFromClearedKey(key string) (domain.Pair, error) {
	trimmed := strings.TrimPrefix(key, levelKeyPrefix)
	trimmed = strings.TrimSuffix(trimmed, clearedKeySuffix)
	if trimmed == key || trimmed == "" {
		return domain.Pair{}, domain.ErrMalformedKey
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, domain.ErrMalformedKey
	}
	return domain.Pair{Level: parts[0], Model: parts[1]}, nil
}
