package model

// EventKind 节点生命周期事件类型
type EventKind string

const (
	EventTrackStarted EventKind = "track_started"
	EventTrackEnded   EventKind = "track_ended"
)

// NodeEvent is a lifecycle event reported by the audio node for one tenant.
type NodeEvent struct {
	Kind        EventKind `json:"kind"`
	TenantID    string    `json:"tenantId"`
	TrackHandle string    `json:"track"`
	Reason      string    `json:"reason,omitempty"` // 仅 TrackEnded：FINISHED, STOPPED, REPLACED ...
}
