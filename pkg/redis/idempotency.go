package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	rd "github.com/redis/go-redis/v9"
)

const claimPending = "pending"

// luaClaim 不存在时占位为 pending 并返回 acquired，否则返回当前值（pending 或记录 ID）。
const luaClaim = `
local v = redis.call('GET', KEYS[1])
if not v then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
  return 'acquired'
end
return v
`

// luaReleaseIfPending 仅当仍是 pending 占位时才删除，避免误删已完成的结果。
const luaReleaseIfPending = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// Claim 幂等键占位结果：
//   - Acquired: 本次请求获得执行权
//   - InFlight: 同一个键的请求正在执行
//   - RecordID: 之前的请求已成功创建该记录
type Claim struct {
	Acquired bool
	InFlight bool
	RecordID uint
}

// ClaimIdempotency 尝试占用幂等键。
func ClaimIdempotency(ctx context.Context, rdb *rd.Client, key string, ttl time.Duration) (Claim, error) {
	res, err := rdb.Eval(ctx, luaClaim, []string{key}, claimPending, int64(ttl/time.Second)).Text()
	if err != nil {
		return Claim{}, err
	}
	switch res {
	case "acquired":
		return Claim{Acquired: true}, nil
	case claimPending:
		return Claim{InFlight: true}, nil
	}
	id, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return Claim{}, errors.Errorf("corrupt idempotency value %q at %s", res, key)
	}
	return Claim{RecordID: uint(id)}, nil
}

// CompleteIdempotency 记录创建结果，后续重放直接返回该记录。
func CompleteIdempotency(ctx context.Context, rdb *rd.Client, key string, recordID uint, ttl time.Duration) error {
	return rdb.Set(ctx, key, strconv.FormatUint(uint64(recordID), 10), ttl).Err()
}

// ReleaseIdempotency 创建失败时释放占位，允许客户端用同一个键重试。
func ReleaseIdempotency(ctx context.Context, rdb *rd.Client, key string) error {
	return rdb.Eval(ctx, luaReleaseIfPending, []string{key}, claimPending).Err()
}
