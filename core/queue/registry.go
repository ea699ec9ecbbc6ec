package queue

import (
	"sort"
	"sync"
)

// Registry 租户 -> 队列 映射
// 首次引用时创建队列，不做隐式删除；由 server 构造后显式传给命令层和 Reconciler
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewRegistry 创建空的租户注册表
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Get 只查询，不创建
func (r *Registry) Get(tenantID string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[tenantID]
	return q, ok
}

// GetOrCreate returns the tenant's queue, creating it on first use. Concurrent first callers
// all get the same instance.
func (r *Registry) GetOrCreate(tenantID string) *Queue {
	if q, ok := r.Get(tenantID); ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 双重检查：等锁期间可能已有其他调用方创建
	if q, ok := r.queues[tenantID]; ok {
		return q
	}
	q := New()
	r.queues[tenantID] = q
	return q
}

// Tenants 返回所有已注册租户ID（排序后）
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.queues))
	for id := range r.queues {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len 已注册租户数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}
