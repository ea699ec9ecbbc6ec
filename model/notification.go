package model

import "time"

// EmbedColor 所有通知卡片使用的颜色
const EmbedColor = 0xe04f2e

// NotificationKind 通知类型
type NotificationKind string

const (
	NotifyNowPlaying NotificationKind = "now_playing"
	NotifyEndOfQueue NotificationKind = "end_of_queue"
	NotifyMessage    NotificationKind = "message"
)

// EmbedField 卡片字段
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Embed 富文本卡片，由消息层渲染
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      string       `json:"footer,omitempty"`
}

// NewEmbed 创建带默认颜色的卡片
func NewEmbed(title string) *Embed {
	return &Embed{Title: title, Color: EmbedColor}
}

// AddField 追加字段
func (e *Embed) AddField(name, value string) *Embed {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value})
	return e
}

// Notification 发送给通知目标的消息
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	TenantID  string           `json:"tenantId"`
	Content   string           `json:"content,omitempty"`
	Embed     *Embed           `json:"embed,omitempty"`
	// Track 正在播放的曲目，供非 Discord 后端自行渲染
	Track     *Track           `json:"track,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
