package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"GuildFM/core/queue"
	"GuildFM/logger"
	"GuildFM/model"

	"github.com/go-redis/redis/v8"
)

const (
	queueTracksKey = "guild:%s:queue"      // List: Track JSON，下标 0 为正在播放
	queueMetaKey   = "guild:%s:queue:meta" // Hash: loop_mode / length / updated_at / version
	queueTTL       = 24 * time.Hour
)

// saveScript 只在新快照的版本不低于已存版本时整体替换镜像
// KEYS: 列表 key, meta key; ARGV: version, loop_mode, length, updated_at, ttl 秒, 曲目...
var saveScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[2], 'version')
if current and current > ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
if #ARGV > 5 then
	redis.call('RPUSH', KEYS[1], unpack(ARGV, 6))
	redis.call('EXPIRE', KEYS[1], ARGV[5])
end
redis.call('HSET', KEYS[2], 'loop_mode', ARGV[2], 'length', ARGV[3], 'updated_at', ARGV[4], 'version', ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[5])
return 1
`)

var errRedisNotInitialized = errors.New("Redis client not initialized")

// QueueState 镜像中的队列状态
type QueueState struct {
	TenantID  string         `json:"tenantId"`
	Tracks    []model.Track  `json:"tracks"`
	LoopMode  model.LoopMode `json:"loopMode"`
	UpdatedAt int64          `json:"updatedAt"`
	Version   string         `json:"version,omitempty"`
}

// QueueCache mirrors tenant queues into Redis for the CLI and dashboards. The in-memory queue
// stays authoritative; nothing reads the mirror back into it.
type QueueCache struct {
	client *redis.Client
	// epoch 区分进程，重启后的写入总是覆盖旧进程留下的镜像
	epoch int64
}

// NewQueueCache client 为 nil 时使用全局 RedisClient
func NewQueueCache(client *redis.Client) *QueueCache {
	if client == nil {
		client = RedisClient
	}
	return &QueueCache{client: client, epoch: time.Now().UnixNano()}
}

// versionStamp 定宽编码，Lua 中按字符串比较即可得到先后顺序
func versionStamp(epoch int64, version uint64) string {
	return fmt.Sprintf("%020d:%020d", epoch, version)
}

// GetQueueKey 获取租户队列 Redis key
func GetQueueKey(tenantID string) string {
	return fmt.Sprintf(queueTracksKey, tenantID)
}

// Save replaces the mirror with state unless Redis already holds a newer version.
// Writes from concurrent callers may arrive out of order; the older one is dropped.
func (c *QueueCache) Save(ctx context.Context, tenantID string, state queue.State) error {
	if c.client == nil {
		return errRedisNotInitialized
	}

	args, err := c.saveArgs(state, time.Now())
	if err != nil {
		return err
	}

	keys := []string{GetQueueKey(tenantID), fmt.Sprintf(queueMetaKey, tenantID)}
	applied, err := saveScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	if applied == 0 {
		logger.Debug("skipped stale queue mirror write",
			logger.Tenant(tenantID),
			logger.Uint64("version", state.Version))
	}
	return nil
}

func (c *QueueCache) saveArgs(state queue.State, now time.Time) ([]interface{}, error) {
	items, err := encodeTracks(state.Tracks)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, 0, 5+len(items))
	args = append(args,
		versionStamp(c.epoch, state.Version),
		state.LoopMode.String(),
		len(state.Tracks),
		now.UnixMilli(),
		int64(queueTTL/time.Second),
	)
	return append(args, items...), nil
}

// Load 读取镜像，不存在时返回 nil
func (c *QueueCache) Load(ctx context.Context, tenantID string) (*QueueState, error) {
	if c.client == nil {
		return nil, errRedisNotInitialized
	}

	items, err := c.client.LRange(ctx, GetQueueKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	meta, err := c.client.HGetAll(ctx, fmt.Sprintf(queueMetaKey, tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue meta: %w", err)
	}
	if len(items) == 0 && len(meta) == 0 {
		return nil, nil
	}

	return decodeState(tenantID, items, meta)
}

// Delete 删除租户镜像
func (c *QueueCache) Delete(ctx context.Context, tenantID string) error {
	if c.client == nil {
		return errRedisNotInitialized
	}
	return c.client.Del(ctx, GetQueueKey(tenantID), fmt.Sprintf(queueMetaKey, tenantID)).Err()
}

// Tenants 扫描所有存在镜像的租户
func (c *QueueCache) Tenants(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, errRedisNotInitialized
	}

	var tenants []string
	iter := c.client.Scan(ctx, 0, fmt.Sprintf(queueMetaKey, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if id, ok := tenantFromMetaKey(iter.Val()); ok {
			tenants = append(tenants, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return tenants, nil
}

func encodeTracks(tracks []model.Track) ([]interface{}, error) {
	items := make([]interface{}, 0, len(tracks))
	for _, t := range tracks {
		data, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal track: %w", err)
		}
		items = append(items, data)
	}
	return items, nil
}

func decodeState(tenantID string, items []string, meta map[string]string) (*QueueState, error) {
	state := &QueueState{TenantID: tenantID, Tracks: make([]model.Track, 0, len(items))}
	for _, item := range items {
		var t model.Track
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal track: %w", err)
		}
		state.Tracks = append(state.Tracks, t)
	}

	if v, ok := meta["loop_mode"]; ok {
		mode, err := model.ParseLoopMode(v)
		if err != nil {
			return nil, err
		}
		state.LoopMode = mode
	}
	if v, ok := meta["updated_at"]; ok {
		state.UpdatedAt, _ = strconv.ParseInt(v, 10, 64)
	}
	state.Version = meta["version"]
	return state, nil
}

func tenantFromMetaKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "guild:")
	if !ok {
		return "", false
	}
	return strings.CutSuffix(rest, ":queue:meta")
}
