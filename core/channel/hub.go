package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"GuildFM/logger"
	"GuildFM/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHubStopped Hub 已停止，无法再投递消息
var ErrHubStopped = errors.New("channel hub stopped")

// MessageType 消息类型
type MessageType string

const (
	MsgTypeNotification MessageType = "notification" // 播放通知
	MsgTypePing         MessageType = "ping"         // 心跳
	MsgTypePong         MessageType = "pong"         // 心跳响应
	MsgTypeWelcome      MessageType = "welcome"      // 连接成功
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	ID           string              `json:"id"`
	Type         MessageType         `json:"type"`
	Channel      string              `json:"channel"`
	Notification *model.Notification `json:"notification,omitempty"`
	Timestamp    int64               `json:"timestamp"`
}

// Client 订阅某个租户通知频道的 WebSocket 客户端
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	TenantID string
	Channel  string

	// sendMu 保护 Send 的写入与关闭，closed 之后任何一方都不再写入
	sendMu sync.Mutex
	closed bool
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, tenantID, channel string) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		TenantID: tenantID,
		Channel:  channel,
	}
}

// Key 租户限定的频道键，不同租户的同名频道互不可见
func Key(tenantID, channel string) string {
	return tenantID + "/" + channel
}

func (c *Client) key() string {
	return Key(c.TenantID, c.Channel)
}

// trySend 非阻塞写入，已关闭或缓冲区满时返回 false
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend 只关闭一次
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub fans notifications out to every websocket subscribed to a tenant's notify target.
// It is the default delivery backend for "now playing" / "end of queue" messages.
type Hub struct {
	// 租户/频道 -> 客户端集合
	channels map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// broadcastMessage 广播消息，Key 为租户限定的频道键
type broadcastMessage struct {
	Key     string
	Message []byte
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := client.key()
	if h.channels[key] == nil {
		h.channels[key] = make(map[*Client]bool)
	}
	h.channels[key][client] = true

	logger.Info("channel client registered",
		logger.Tenant(client.TenantID),
		logger.String("channel", client.Channel),
		logger.Int("subscribers", len(h.channels[key])))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClient(client)
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	key := client.key()
	clients, ok := h.channels[key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.closeSend()
	if len(clients) == 0 {
		delete(h.channels, key)
	}

	logger.Info("channel client unregistered",
		logger.Tenant(client.TenantID),
		logger.String("channel", client.Channel))
}

func (h *Hub) broadcastToChannel(msg *broadcastMessage) {
	h.mu.RLock()
	clients, ok := h.channels[msg.Key]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// 复制客户端列表以避免长时间持有锁
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clientList {
		if !client.trySend(msg.Message) {
			slow = append(slow, client)
		}
	}

	// 发送缓冲区满的客户端直接移除
	if len(slow) > 0 {
		h.mu.Lock()
		for _, client := range slow {
			h.removeClient(client)
		}
		h.mu.Unlock()
	}
}

// cleanup 清理所有连接
func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.channels {
		for client := range clients {
			client.closeSend()
		}
	}
	h.channels = make(map[string]map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SubscriberCount 租户频道订阅者数量
func (h *Hub) SubscriberCount(tenantID, channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[Key(tenantID, channel)])
}

// Notify queues a notification for every subscriber of target within n.TenantID. A channel
// nobody listens to is not an error; the message is simply dropped.
func (h *Hub) Notify(ctx context.Context, target string, n model.Notification) error {
	msg := &WSMessage{
		ID:           uuid.NewString(),
		Type:         MsgTypeNotification,
		Channel:      target,
		Notification: &n,
		Timestamp:    time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	select {
	case h.broadcast <- &broadcastMessage{Key: Key(n.TenantID, target), Message: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环，只处理心跳
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("channel", c.Channel))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == MsgTypePing {
			c.SendMessage(&WSMessage{Type: MsgTypePong, Channel: c.Channel})
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，缓冲区满或已被 Hub 移除时丢弃
func (c *Client) SendMessage(msg *WSMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.trySend(data)
}
