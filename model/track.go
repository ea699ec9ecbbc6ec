package model

// UnknownPlaceholder 缺失的标题/作者显示值
const UnknownPlaceholder = "<UNKNOWN>"

// TrackInfo 音频节点返回的曲目元数据
type TrackInfo struct {
	Identifier string  `json:"identifier"`
	Title      *string `json:"title,omitempty"`
	Author     *string `json:"author,omitempty"`
	URI        string  `json:"uri"`
	Length     uint64  `json:"length"` // 毫秒
	IsStream   bool    `json:"isStream"`
	IsSeekable bool    `json:"isSeekable"`
}

// Track represents one queued item: the node's playable handle, its display metadata
// and the channel that asked for it.
type Track struct {
	Handle       string    `json:"track"` // 节点可识别的播放句柄，原样传给 play
	Info         TrackInfo `json:"info"`
	NotifyTarget string    `json:"notifyTarget"` // 入队时确定，之后不再修改
}

// NewTrack 创建曲目，通知目标取自请求上下文
func NewTrack(handle string, info TrackInfo, notifyTarget string) Track {
	return Track{
		Handle:       handle,
		Info:         info,
		NotifyTarget: notifyTarget,
	}
}

// DisplayTitle 返回标题，缺失时返回占位符
func (t Track) DisplayTitle() string {
	if t.Info.Title == nil {
		return UnknownPlaceholder
	}
	return *t.Info.Title
}

// DisplayAuthor 返回作者，缺失时返回占位符
func (t Track) DisplayAuthor() string {
	if t.Info.Author == nil {
		return UnknownPlaceholder
	}
	return *t.Info.Author
}

// LengthMs 曲目时长（毫秒）
func (t Track) LengthMs() uint64 {
	return t.Info.Length
}

// RemainingMs 根据节点上报的播放位置计算剩余时间
func (t Track) RemainingMs(positionMs uint64) uint64 {
	if positionMs >= t.Info.Length {
		return 0
	}
	return t.Info.Length - positionMs
}

// Equal compares every field by value, optional strings included.
func (t Track) Equal(other Track) bool {
	return t.Handle == other.Handle &&
		t.NotifyTarget == other.NotifyTarget &&
		t.Info.Identifier == other.Info.Identifier &&
		t.Info.URI == other.Info.URI &&
		t.Info.Length == other.Info.Length &&
		t.Info.IsStream == other.Info.IsStream &&
		t.Info.IsSeekable == other.Info.IsSeekable &&
		equalOptional(t.Info.Title, other.Info.Title) &&
		equalOptional(t.Info.Author, other.Info.Author)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr 辅助函数，用于构造可选字段
func StringPtr(s string) *string {
	return &s
}
