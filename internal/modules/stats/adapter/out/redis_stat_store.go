package out

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"focuskit/internal/modules/stats/domain"
	statsout "focuskit/internal/modules/stats/port/out"

	"github.com/redis/go-redis/v9"
)

// creditScript applies a credit atomically. KEYS: credit marker, day hash,
// day index set. ARGV: session id, date key, completed, partial, seconds,
// target, target type.
var creditScript = redis.NewScript(`
if ARGV[1] ~= "" then
  if redis.call("SETNX", KEYS[1], ARGV[2]) == 0 then
    return 0
  end
end
redis.call("HSETNX", KEYS[2], "target", ARGV[6])
redis.call("HSETNX", KEYS[2], "target_type", ARGV[7])
redis.call("HINCRBY", KEYS[2], "completed_count", ARGV[3])
redis.call("HINCRBY", KEYS[2], "partial_count", ARGV[4])
redis.call("HINCRBY", KEYS[2], "focus_seconds", ARGV[5])
redis.call("SADD", KEYS[3], ARGV[2])
return 1
`)

// RedisStatStore keeps one hash per day so several machines can credit the
// same stats.
type RedisStatStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStatStore(client *redis.Client, keyPrefix string) *RedisStatStore {
	if keyPrefix == "" {
		keyPrefix = "focuskit:"
	}
	return &RedisStatStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStatStore) dayKey(dateKey string) string {
	return r.keyPrefix + "stats:day:" + dateKey
}

func (r *RedisStatStore) Credit(ctx context.Context, credit domain.Credit, target domain.Target) (bool, error) {
	completed, partial := 0, 0
	if credit.Kind == domain.CreditCompleted {
		completed = 1
	} else {
		partial = 1
	}
	keys := []string{
		r.keyPrefix + "stats:credit:" + credit.SessionID,
		r.dayKey(credit.DateKey),
		r.keyPrefix + "stats:days",
	}
	applied, err := creditScript.Run(ctx, r.client, keys,
		credit.SessionID, credit.DateKey, completed, partial, credit.Seconds, target.Value, string(target.Type),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis credit %s: %w", credit.DateKey, err)
	}
	return applied == 1, nil
}

func (r *RedisStatStore) Get(ctx context.Context, dateKey string) (domain.DailyStat, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.dayKey(dateKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DailyStat{}, false, nil
		}
		return domain.DailyStat{}, false, fmt.Errorf("redis get day %s: %w", dateKey, err)
	}
	if len(fields) == 0 {
		return domain.DailyStat{}, false, nil
	}
	stat, err := parseDay(dateKey, fields)
	if err != nil {
		return domain.DailyStat{}, false, err
	}
	return stat, true, nil
}

func (r *RedisStatStore) List(ctx context.Context) ([]domain.DailyStat, error) {
	keys, err := r.client.SMembers(ctx, r.keyPrefix+"stats:days").Result()
	if err != nil {
		return nil, fmt.Errorf("redis list days: %w", err)
	}
	sort.Strings(keys)
	out := make([]domain.DailyStat, 0, len(keys))
	for _, key := range keys {
		stat, ok, err := r.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, stat)
		}
	}
	return out, nil
}

func parseDay(dateKey string, fields map[string]string) (domain.DailyStat, error) {
	stat := domain.DailyStat{DateKey: dateKey, Target: domain.Target{Type: domain.TargetType(fields["target_type"])}}
	ints := map[string]*int64{}
	var completed, partial, target int64
	ints["completed_count"] = &completed
	ints["partial_count"] = &partial
	ints["focus_seconds"] = &stat.FocusSeconds
	ints["target"] = &target
	for name, dst := range ints {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.DailyStat{}, fmt.Errorf("parse %s for %s: %w", name, dateKey, err)
		}
		*dst = v
	}
	stat.CompletedCount = int(completed)
	stat.PartialCount = int(partial)
	stat.Target.Value = int(target)
	return stat, nil
}

var _ statsout.StatStore = (*RedisStatStore)(nil)
