package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordScript accumulates sum/count and recomputes avg in one round trip,
// so concurrent order sources rating the same courier cannot interleave.
var recordScript = redis.NewScript(`
local sum = redis.call('HINCRBY', KEYS[1], 'sum', ARGV[1])
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
local avg = sum / count
redis.call('HSET', KEYS[1], 'avg', tostring(avg))
return {sum, count, tostring(avg)}
`)

// RedisLedger stores each courier's aggregate in a hash (sum, count, avg)
// and a bounded audit list of individual scores.
type RedisLedger struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisLedger { return &RedisLedger{client: client} }

func ratingsKey(courierID string) string { return "ratings:" + courierID }
func historyKey(courierID string) string { return "ratings_history:" + courierID }

func (r *RedisLedger) Get(ctx context.Context, courierID string) (float64, error) {
	val, err := r.client.HGet(ctx, ratingsKey(courierID), "avg").Result()
	if errors.Is(err, redis.Nil) {
		return DefaultAvg, nil
	}
	if err != nil {
		return DefaultAvg, err
	}
	avg, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return DefaultAvg, nil
	}
	return avg, nil
}

func (r *RedisLedger) Record(ctx context.Context, courierID, orderID string, score int) (float64, int64, error) {
	if score < 1 || score > 5 {
		return 0, 0, ErrScoreRange
	}
	res, err := recordScript.Run(ctx, r.client, []string{ratingsKey(courierID)}, score).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("record rating: %w", err)
	}
	if len(res) != 3 {
		return 0, 0, fmt.Errorf("record rating: unexpected reply %v", res)
	}
	count, _ := res[1].(int64)
	avgStr, _ := res[2].(string)
	avg, err := strconv.ParseFloat(avgStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("record rating: parse avg %q: %w", avgStr, err)
	}

	entry, _ := json.Marshal(map[string]any{
		"order_id": orderID,
		"score":    score,
		"ts":       time.Now().Unix(),
	})
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, historyKey(courierID), entry)
	pipe.LTrim(ctx, historyKey(courierID), 0, HistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		// history is best-effort audit data, the aggregate already landed
		return avg, count, nil
	}
	return avg, count, nil
}
