package storage

import (
	"context"
	"strconv"
	"time"

	"TaskFlow/logger"
	"TaskFlow/service/realtime"

	"github.com/redis/go-redis/v9"
)

// presence key: tf:presence:<project>
// hash of user id -> last-active unix seconds, TTL keeps dead rooms
// from accumulating. The in-memory registry stays authoritative; this
// mirror only serves external status readers, so every write here is
// best-effort.
func presenceKey(projectID string) string { return "tf:presence:" + projectID }

type PresenceMirror struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceMirror(rdb *redis.Client, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &PresenceMirror{rdb: rdb, ttl: ttl}
}

func (m *PresenceMirror) Online(projectID string, user realtime.Identity, at time.Time) {
	if m == nil || m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := presenceKey(projectID)
	if err := m.rdb.HSet(ctx, key, user.UserID, at.Unix()).Err(); err != nil {
		logger.Warnf("[presence] online project=%s user=%s err=%v", projectID, user.UserID, err)
		return
	}
	_ = m.rdb.Expire(ctx, key, m.ttl).Err()
}

func (m *PresenceMirror) Offline(projectID, userID string) {
	if m == nil || m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.rdb.HDel(ctx, presenceKey(projectID), userID).Err(); err != nil {
		logger.Warnf("[presence] offline project=%s user=%s err=%v", projectID, userID, err)
	}
}

// Snapshot reads the mirrored room: user id -> last-active unix.
func (m *PresenceMirror) Snapshot(ctx context.Context, projectID string) (map[string]int64, error) {
	if m == nil || m.rdb == nil {
		return nil, nil
	}
	raw, err := m.rdb.HGetAll(ctx, presenceKey(projectID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for user, ts := range raw {
		n, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			continue
		}
		out[user] = n
	}
	return out, nil
}
