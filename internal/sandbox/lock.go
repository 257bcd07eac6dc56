package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockTTL = 10 * time.Minute

// RepoLock serializes sandbox access across concurrent workers sharing
// one repo's working tree, via Redis SET NX.
type RepoLock struct {
	rdb *redis.Client
}

// NewRepoLock builds a RepoLock against rdb.
func NewRepoLock(rdb *redis.Client) *RepoLock {
	return &RepoLock{rdb: rdb}
}

// Acquire blocks (polling) until it holds the lock for repoFullName or
// ctx is done.
func (l *RepoLock) Acquire(ctx context.Context, repoFullName string) (release func(context.Context), err error) {
	key := lockKey(repoFullName)
	token := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire sandbox lock for %s: %w", repoFullName, err)
		}
		if ok {
			return func(releaseCtx context.Context) {
				cur, err := l.rdb.Get(releaseCtx, key).Result()
				if err == nil && cur == token {
					l.rdb.Del(releaseCtx, key)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func lockKey(repoFullName string) string {
	return "sandbox-lock:" + repoFullName
}
