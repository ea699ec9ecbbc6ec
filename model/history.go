package model

import "time"

// PlayHistory 播放记录，每次 TrackStarted 写入一条
type PlayHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID     string    `json:"tenantId" gorm:"size:32;index:idx_tenant_started;not null"`
	Identifier   string    `json:"identifier" gorm:"size:255"`
	Title        string    `json:"title" gorm:"size:255"`
	Author       string    `json:"author" gorm:"size:255"`
	URI          string    `json:"uri" gorm:"size:512"`
	LengthMs     uint64    `json:"lengthMs"`
	NotifyTarget string    `json:"notifyTarget" gorm:"size:64"`
	StartedAt    time.Time `json:"startedAt" gorm:"index:idx_tenant_started"`
}

// TableName 指定表名
func (PlayHistory) TableName() string {
	return "play_history"
}

// NewPlayHistory 由当前曲目生成播放记录
func NewPlayHistory(tenantID string, track Track) *PlayHistory {
	return &PlayHistory{
		TenantID:     tenantID,
		Identifier:   track.Info.Identifier,
		Title:        track.DisplayTitle(),
		Author:       track.DisplayAuthor(),
		URI:          track.Info.URI,
		LengthMs:     track.Info.Length,
		NotifyTarget: track.NotifyTarget,
		StartedAt:    time.Now(),
	}
}
