package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"GuildFM/logger"
	"GuildFM/model"

	"github.com/gorilla/websocket"
)

// ErrNotConnected 节点 websocket 尚未建立或已断开
var ErrNotConnected = errors.New("node not connected")

// Config 节点连接配置
type Config struct {
	WSURL    string
	HTTPURL  string
	Password string
	UserID   string
	Shards   int
}

// EventHandler 接收解析后的生命周期事件，必须立即返回
type EventHandler func(model.NodeEvent)

// playerInfo 节点上报的单个租户播放器状态
type playerInfo struct {
	position int64
	paused   bool
}

// Client talks to one audio node: a websocket for lifecycle events and player ops, plus the
// HTTP /loadtracks endpoint for resolving queries.
type Client struct {
	cfg        Config
	dialer     *websocket.Dialer
	httpClient *http.Client

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex // websocket 只允许一个并发写

	playersMu sync.RWMutex
	players   map[string]*playerInfo
}

// NewClient 创建节点客户端
func NewClient(cfg Config) *Client {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	return &Client{
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		players:    make(map[string]*playerInfo),
	}
}

// Connect 建立 websocket 连接
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", c.cfg.Password)
	header.Set("User-Id", c.cfg.UserID)
	header.Set("Num-Shards", strconv.Itoa(c.cfg.Shards))
	header.Set("Client-Name", "GuildFM")

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.WSURL, header)
	if err != nil {
		return fmt.Errorf("dial node %s: %w", c.cfg.WSURL, err)
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connMu.Unlock()

	logger.Info("connected to audio node", logger.String("url", c.cfg.WSURL))
	return nil
}

// Close 关闭连接
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Run connects and reads node messages until ctx is cancelled, reconnecting with backoff.
// Lifecycle events are handed to handler in the order the node sent them.
func (c *Client) Run(ctx context.Context, handler EventHandler) error {
	backoff := time.Second
	for {
		if c.current() == nil {
			if err := c.Connect(ctx); err != nil {
				logger.Warn("node connect failed, retrying",
					logger.ErrorField(err),
					logger.Duration("backoff", backoff))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, 30*time.Second)
				continue
			}
			backoff = time.Second
		}

		err := c.ReadPump(ctx, handler)
		if ctx.Err() != nil {
			c.Close()
			return ctx.Err()
		}
		logger.Warn("node connection lost", logger.ErrorField(err))
		c.Close()
	}
}

// ReadPump 读取节点消息循环，连接出错时返回
func (c *Client) ReadPump(ctx context.Context, handler EventHandler) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	// ctx 取消时关闭连接以打断阻塞的读
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(message, handler)
	}
}

func (c *Client) handleMessage(message []byte, handler EventHandler) {
	var msg incomingMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("invalid node message", logger.ErrorField(err))
		return
	}

	switch msg.Op {
	case opEvent:
		if ev, ok := toNodeEvent(msg); ok {
			handler(ev)
		}
	case opPlayerUpdate:
		if msg.State != nil {
			c.setPosition(msg.GuildID, msg.State.Position)
		}
	case opStats:
		// 节点负载信息，暂不使用
	default:
		logger.Debug("unknown node op", logger.String("op", msg.Op))
	}
}

func toNodeEvent(msg incomingMessage) (model.NodeEvent, bool) {
	switch msg.Type {
	case eventTrackStart:
		return model.NodeEvent{
			Kind:        model.EventTrackStarted,
			TenantID:    msg.GuildID,
			TrackHandle: msg.Track,
		}, true
	case eventTrackEnd:
		return model.NodeEvent{
			Kind:        model.EventTrackEnded,
			TenantID:    msg.GuildID,
			TrackHandle: msg.Track,
			Reason:      msg.Reason,
		}, true
	case eventTrackException:
		// TrackException/TrackStuck 之后节点仍会发送 TrackEnd，这里只记录
		var message, severity string
		if msg.Exception != nil {
			message, severity = msg.Exception.Message, msg.Exception.Severity
		}
		logger.Warn("track exception",
			logger.Tenant(msg.GuildID),
			logger.String("track", msg.Track),
			logger.String("error", message),
			logger.String("severity", severity))
	case eventTrackStuck:
		logger.Warn("track stuck",
			logger.Tenant(msg.GuildID),
			logger.String("track", msg.Track),
			logger.Int64("threshold_ms", msg.ThresholdMs))
	case eventSocketClosed:
		logger.Warn("voice socket closed",
			logger.Tenant(msg.GuildID),
			logger.Int("code", msg.Code),
			logger.String("reason", msg.Reason),
			logger.Bool("by_remote", msg.ByRemote))
	default:
		logger.Debug("ignored node event",
			logger.String("type", msg.Type),
			logger.Tenant(msg.GuildID))
	}
	return model.NodeEvent{}, false
}

// ========== 播放器操作 ==========

// Play 让节点播放指定句柄
func (c *Client) Play(ctx context.Context, tenantID, handle string) error {
	if err := c.send(ctx, outgoingOp{Op: opPlay, GuildID: tenantID, Track: handle}); err != nil {
		return err
	}
	c.updatePlayer(tenantID, func(p *playerInfo) {
		p.position = 0
		p.paused = false
	})
	return nil
}

// Stop 停止当前曲目，节点随后会推送 TrackEnd(STOPPED)
func (c *Client) Stop(ctx context.Context, tenantID string) error {
	return c.send(ctx, outgoingOp{Op: opStop, GuildID: tenantID})
}

// Pause 暂停/恢复
func (c *Client) Pause(ctx context.Context, tenantID string, pause bool) error {
	if err := c.send(ctx, outgoingOp{Op: opPause, GuildID: tenantID, Pause: &pause}); err != nil {
		return err
	}
	c.updatePlayer(tenantID, func(p *playerInfo) { p.paused = pause })
	return nil
}

// Destroy 销毁租户的播放器
func (c *Client) Destroy(ctx context.Context, tenantID string) error {
	if err := c.send(ctx, outgoingOp{Op: opDestroy, GuildID: tenantID}); err != nil {
		return err
	}
	c.playersMu.Lock()
	delete(c.players, tenantID)
	c.playersMu.Unlock()
	return nil
}

// Position 节点最近一次上报的播放位置（毫秒）
func (c *Client) Position(tenantID string) uint64 {
	c.playersMu.RLock()
	defer c.playersMu.RUnlock()
	if p, ok := c.players[tenantID]; ok && p.position > 0 {
		return uint64(p.position)
	}
	return 0
}

// Paused 租户播放器是否处于暂停
func (c *Client) Paused(tenantID string) bool {
	c.playersMu.RLock()
	defer c.playersMu.RUnlock()
	p, ok := c.players[tenantID]
	return ok && p.paused
}

func (c *Client) setPosition(tenantID string, position int64) {
	c.updatePlayer(tenantID, func(p *playerInfo) { p.position = position })
}

func (c *Client) updatePlayer(tenantID string, fn func(p *playerInfo)) {
	c.playersMu.Lock()
	defer c.playersMu.Unlock()
	p, ok := c.players[tenantID]
	if !ok {
		p = &playerInfo{}
		c.players[tenantID] = p
	}
	fn(p)
}

func (c *Client) current() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

func (c *Client) send(ctx context.Context, op outgoingOp) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(op)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s to node: %w", op.Op, err)
	}
	return nil
}

// ========== 曲目解析 ==========

// Resolve 通过节点 HTTP 接口解析链接或搜索词
func (c *Client) Resolve(ctx context.Context, identifier string) (*LoadResult, error) {
	endpoint := strings.TrimRight(c.cfg.HTTPURL, "/") + "/loadtracks?identifier=" + url.QueryEscape(identifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("load tracks: node returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result LoadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode load result: %w", err)
	}
	return &result, nil
}

// SearchIdentifier 非链接的查询加上 ytsearch: 前缀
func SearchIdentifier(query string) string {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "http") {
		return query
	}
	return "ytsearch:" + query
}
