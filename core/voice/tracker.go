package voice

import (
	"sync"
	"time"
)

// Connection 机器人在某租户中的语音连接
type Connection struct {
	ChannelID string    `json:"channelId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Tracker records which tenants the bot currently has a voice connection in.
type Tracker struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewTracker 创建语音状态跟踪器
func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]Connection)}
}

// Join 记录加入语音频道，重复加入会覆盖频道
func (t *Tracker) Join(tenantID, channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[tenantID] = Connection{ChannelID: channelID, JoinedAt: time.Now()}
}

// Leave 离开语音频道，返回之前是否已连接
func (t *Tracker) Leave(tenantID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.conns[tenantID]
	delete(t.conns, tenantID)
	return ok
}

func (t *Tracker) IsConnected(tenantID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.conns[tenantID]
	return ok
}

// Channel 当前所在频道
func (t *Tracker) Channel(tenantID string) (Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[tenantID]
	return c, ok
}
