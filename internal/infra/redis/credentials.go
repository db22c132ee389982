package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"promptathon/internal/domain"
)

// SeedCredentials stores participant logins under user:{name} hashes. A
// password already issued for a user wins over the supplied one, so re-running
// the command never rotates anyone's login. Returns the effective credentials.
func (w *Writer) SeedCredentials(ctx context.Context, creds []domain.Credential) ([]domain.Credential, error) {
	out := make([]domain.Credential, 0, len(creds))
	for _, cred := range creds {
		key := userKey(cred.Username)
		set, err := w.client.HSetNX(ctx, key, "password", cred.Password).Result()
		if err != nil {
			return nil, fmt.Errorf("seed credential %s: %w", cred.Username, err)
		}
		if !set {
			stored, err := w.client.HGet(ctx, key, "password").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("read credential %s: %w", cred.Username, err)
			}
			if stored != "" {
				cred.Password = stored
			}
		}
		out = append(out, cred)
	}
	return out, nil
}

// ListCredentials returns every stored participant login.
func (k *Keyspace) ListCredentials(ctx context.Context) []domain.Credential {
	keys, err := k.scanKeys(ctx, userKeyPrefix+"*")
	if err != nil {
		k.log.Error().Err(err).Msg("listing credentials failed")
		return nil
	}
	sort.Strings(keys)
	creds := make([]domain.Credential, 0, len(keys))
	for _, key := range keys {
		password, err := k.client.HGet(ctx, key, "password").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			k.log.Error().Err(err).Str("key", key).Msg("credential read failed")
			continue
		}
		creds = append(creds, domain.Credential{
			Username: key[len(userKeyPrefix):],
			Password: password,
		})
	}
	return creds
}
