package reconciler

import "errors"

var (
	// ErrNodeCommandFailed 节点拒绝了 play/stop，队列状态不回滚
	ErrNodeCommandFailed = errors.New("node command failed")
	// ErrNotificationDeliveryFailed 通知发送失败
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
)
