package node

import "GuildFM/model"

// 节点 websocket 操作码
const (
	opPlay         = "play"
	opStop         = "stop"
	opPause        = "pause"
	opDestroy      = "destroy"
	opEvent        = "event"
	opPlayerUpdate = "playerUpdate"
	opStats        = "stats"
)

// 节点事件类型
const (
	eventTrackStart     = "TrackStartEvent"
	eventTrackEnd       = "TrackEndEvent"
	eventTrackException = "TrackExceptionEvent"
	eventTrackStuck     = "TrackStuckEvent"
	eventSocketClosed   = "WebSocketClosedEvent"
)

// LoadType 曲目解析结果类型
type LoadType string

const (
	LoadTrackLoaded    LoadType = "TRACK_LOADED"
	LoadPlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadSearchResult   LoadType = "SEARCH_RESULT"
	LoadNoMatches      LoadType = "NO_MATCHES"
	LoadFailed         LoadType = "LOAD_FAILED"
)

// outgoingOp 发往节点的操作
type outgoingOp struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Track   string `json:"track,omitempty"`
	Pause   *bool  `json:"pause,omitempty"`
}

// PlayerState 节点 playerUpdate 中的播放器状态
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
}

// TrackException TrackExceptionEvent 附带的错误
type TrackException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// incomingMessage 节点推送的消息（event / playerUpdate / stats）
type incomingMessage struct {
	Op          string          `json:"op"`
	Type        string          `json:"type,omitempty"`
	GuildID     string          `json:"guildId,omitempty"`
	Track       string          `json:"track,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	State       *PlayerState    `json:"state,omitempty"`
	Exception   *TrackException `json:"exception,omitempty"`
	ThresholdMs int64           `json:"thresholdMs,omitempty"`
	Code        int             `json:"code,omitempty"`
	ByRemote    bool            `json:"byRemote,omitempty"`
}

// PlaylistInfo 歌单信息
type PlaylistInfo struct {
	Name          *string `json:"name,omitempty"`
	SelectedTrack int     `json:"selectedTrack"`
}

// LoadedTrack 解析出的单条曲目
type LoadedTrack struct {
	Track string          `json:"track"`
	Info  model.TrackInfo `json:"info"`
}

// LoadResult /loadtracks 的响应
type LoadResult struct {
	LoadType     LoadType      `json:"loadType"`
	PlaylistInfo PlaylistInfo  `json:"playlistInfo"`
	Tracks       []LoadedTrack `json:"tracks"`
}
