package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLoopMode 未知的循环模式
var ErrInvalidLoopMode = errors.New("invalid loop mode")

// LoopMode 队列循环模式
type LoopMode int

const (
	LoopNone  LoopMode = iota // 默认：播完即出队
	LoopQueue                 // 播完的曲目移到队尾
	LoopTrack                 // 单曲循环
)

// String returns the mode name used by commands and the queue mirror.
func (m LoopMode) String() string {
	switch m {
	case LoopQueue:
		return "queue"
	case LoopTrack:
		return "track"
	default:
		return "none"
	}
}

// ParseLoopMode 解析命令参数中的循环模式
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LoopNone, nil
	case "queue":
		return LoopQueue, nil
	case "track":
		return LoopTrack, nil
	default:
		return LoopNone, fmt.Errorf("%w: %q", ErrInvalidLoopMode, s)
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (m LoopMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *LoopMode) UnmarshalText(text []byte) error {
	mode, err := ParseLoopMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
