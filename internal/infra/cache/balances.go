package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/matrixledger/internal/domain"
)

// Balances caches per-user balance snapshots.
//
// Every Invalidate bumps a per-user generation. Get reports the generation
// seen on a miss and Set stores only while it is still current, so a
// snapshot read before a concurrent commit cannot outlive that commit.
type Balances interface {
	Get(ctx context.Context, userID uint64) (b domain.Balances, gen int64, ok bool, err error)
	Set(ctx context.Context, userID uint64, gen int64, b domain.Balances) (bool, error)
	Invalidate(ctx context.Context, userIDs ...uint64) error
}

var (
	_ Balances = (*RedisBalances)(nil)
	_ Balances = Nop{}
)

// genTTL only has to outlast a single read-through.
const genTTL = 24 * time.Hour

// setIfGen: KEYS[1] value, KEYS[2] generation; ARGV gen, payload, ttl ms.
var setIfGen = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type RedisBalances struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBalances(client *redis.Client, ttl time.Duration) *RedisBalances {
	return &RedisBalances{client: client, ttl: ttl}
}

type cachedBalances struct {
	Primary int64 `json:"primary"`
	Bonus   int64 `json:"bonus"`
	Pool    int64 `json:"pool"`
}

func balanceKey(userID uint64) string {
	return "balances:" + strconv.FormatUint(userID, 10)
}

func genKey(userID uint64) string {
	return "balances:gen:" + strconv.FormatUint(userID, 10)
}

func (c *RedisBalances) Get(ctx context.Context, userID uint64) (domain.Balances, int64, bool, error) {
	vals, err := c.client.MGet(ctx, balanceKey(userID), genKey(userID)).Result()
	if err != nil {
		return domain.Balances{}, 0, false, fmt.Errorf("redis mget: %w", err)
	}

	var gen int64

	rawGen, ok := vals[1].(string)
	if ok {
		gen, err = strconv.ParseInt(rawGen, 10, 64)
		if err != nil {
			return domain.Balances{}, 0, false, fmt.Errorf("decode generation: %w", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return domain.Balances{}, gen, false, nil
	}

	var cb cachedBalances
	err = json.Unmarshal([]byte(raw), &cb)
	if err != nil {
		return domain.Balances{}, gen, false, fmt.Errorf("decode cached balances: %w", err)
	}

	return domain.Balances{Primary: cb.Primary, Bonus: cb.Bonus, Pool: cb.Pool}, gen, true, nil
}

func (c *RedisBalances) Set(ctx context.Context, userID uint64, gen int64, b domain.Balances) (bool, error) {
	data, err := json.Marshal(cachedBalances{Primary: b.Primary, Bonus: b.Bonus, Pool: b.Pool})
	if err != nil {
		return false, fmt.Errorf("encode balances: %w", err)
	}

	stored, err := setIfGen.Run(ctx, c.client,
		[]string{balanceKey(userID), genKey(userID)},
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}

	return stored == 1, nil
}

func (c *RedisBalances) Invalidate(ctx context.Context, userIDs ...uint64) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range userIDs {
			p.Incr(ctx, genKey(id))
			p.Expire(ctx, genKey(id), genTTL)
			p.Del(ctx, balanceKey(id))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}

	return nil
}

// Nop is used when no redis is configured.
type Nop struct{}

func (Nop) Get(context.Context, uint64) (domain.Balances, int64, bool, error) {
	return domain.Balances{}, 0, false, nil
}

func (Nop) Set(context.Context, uint64, int64, domain.Balances) (bool, error) { return false, nil }

func (Nop) Invalidate(context.Context, ...uint64) error { return nil }
