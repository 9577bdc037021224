package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/cacheflow/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// decrScript floors at zero and keeps the remaining TTL of the key.
var decrScript = goredis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return false end
local n = tonumber(v)
if not n then return redis.error_reply('not a counter') end
n = n - tonumber(ARGV[1])
if n < 0 then n = 0 end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], n, 'PX', ttl)
else
  redis.call('SET', KEYS[1], n)
end
return n
`)

type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
	tc          pr.Transcoder
}

var (
	_ pr.Backend            = (*Redis)(nil)
	_ pr.TranscoderProvider = (*Redis)(nil)
)

type Config struct {
	Client goredis.UniversalClient
	// Prefix is the physical namespace of this cache. When set, Flush only
	// removes keys under it (SCAN+DEL) instead of FLUSHDB.
	Prefix      string
	CloseClient bool // set true only if this provider exclusively owns the client
	// Transcoder for the provider serialization strategy; nil => msgpack.
	Transcoder pr.Transcoder
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	tc := cfg.Transcoder
	if tc == nil {
		tc = pr.MsgpackTranscoder{}
	}
	return &Redis{rdb: cfg.Client, prefix: cfg.Prefix, closeClient: cfg.CloseClient, tc: tc}, nil
}

func (p *Redis) k(key string) string { return p.prefix + key }

func (p *Redis) Transcoder() pr.Transcoder { return p.tc }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.k(key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redis) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.k(k)
	}
	vals, err := p.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		}
	}
	return out, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.Set(ctx, p.k(key), value, ttl).Err()
}

func (p *Redis) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, p.k(key), value, ttl).Result()
}

func (p *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, p.k(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrWithDefault seeds with def-delta (NX) and then applies INCRBY in one
// MULTI/EXEC, so an absent key ends at def and a present one moves by delta.
func (p *Redis) IncrWithDefault(ctx context.Context, key string, delta, def int64, ttl time.Duration) (int64, error) {
	if ttl < 0 {
		ttl = 0
	}
	k := p.k(key)
	var incr *goredis.IntCmd
	_, err := p.rdb.TxPipelined(ctx, func(tx goredis.Pipeliner) error {
		tx.SetNX(ctx, k, def-delta, ttl)
		incr = tx.IncrBy(ctx, k, delta)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (p *Redis) Decr(ctx context.Context, key string, delta int64) (int64, bool, error) {
	n, err := decrScript.Run(ctx, p.rdb, []string{p.k(key)}, delta).Int64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (p *Redis) Flush(ctx context.Context) error {
	if p.prefix == "" {
		return p.rdb.FlushDB(ctx).Err()
	}
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, p.prefix+"*", 512).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (p *Redis) Nodes(ctx context.Context) ([]string, error) {
	switch c := p.rdb.(type) {
	case *goredis.Client:
		return []string{c.Options().Addr}, nil
	case *goredis.ClusterClient:
		var mu sync.Mutex
		var out []string
		err := c.ForEachShard(ctx, func(_ context.Context, shard *goredis.Client) error {
			mu.Lock()
			out = append(out, shard.Options().Addr)
			mu.Unlock()
			return nil
		})
		return out, err
	case *goredis.Ring:
		var mu sync.Mutex
		var out []string
		err := c.ForEachShard(ctx, func(_ context.Context, shard *goredis.Client) error {
			mu.Lock()
			out = append(out, shard.Options().Addr)
			mu.Unlock()
			return nil
		})
		return out, err
	}
	return nil, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
