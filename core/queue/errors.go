package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQueue Pop/Peek 作用于空队列
	ErrEmptyQueue = errors.New("empty queue")
	// ErrNoQueueFound 租户没有已注册的队列
	ErrNoQueueFound = errors.New("no queue found")
)

// NoQueueFoundError carries the tenant whose queue was missing and matches ErrNoQueueFound.
type NoQueueFoundError struct {
	TenantID string
}

func (e *NoQueueFoundError) Error() string {
	return fmt.Sprintf("no queue found for tenant %s", e.TenantID)
}

// Is 使 errors.Is(err, ErrNoQueueFound) 成立
func (e *NoQueueFoundError) Is(target error) bool {
	return target == ErrNoQueueFound
}
