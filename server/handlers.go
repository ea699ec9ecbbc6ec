package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"GuildFM/core/auth"
	"GuildFM/core/channel"
	"GuildFM/core/command"
	"GuildFM/core/queue"
	"GuildFM/logger"
	"GuildFM/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	table          *command.Table
	registry       *queue.Registry
	hub            *channel.Hub
	issuer         *auth.Issuer
	commandTimeout time.Duration
	upgrader       websocket.Upgrader
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	table *command.Table,
	registry *queue.Registry,
	hub *channel.Hub,
	issuer *auth.Issuer,
	commandTimeout time.Duration,
) *APIHandler {
	if commandTimeout <= 0 {
		commandTimeout = 10 * time.Second
	}
	return &APIHandler{
		table:          table,
		registry:       registry,
		hub:            hub,
		issuer:         issuer,
		commandTimeout: commandTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// commandBody 命令请求体
type commandBody struct {
	NotifyTarget string            `json:"notifyTarget"`
	Args         map[string]string `json:"args"`
}

// commandReply 命令响应
type commandReply struct {
	RequestID string       `json:"requestId"`
	Command   string       `json:"command"`
	Content   string       `json:"content,omitempty"`
	Embed     *model.Embed `json:"embed,omitempty"`
}

// queueReply 队列快照
type queueReply struct {
	TenantID string         `json:"tenantId"`
	LoopMode model.LoopMode `json:"loopMode"`
	Tracks   []model.Track  `json:"tracks"`
}

// commandInfo 命令列表条目
type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// CommandHandler POST /api/tenants/{tenant}/commands/{name}
func (h *APIHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID, name := vars["tenant"], vars["name"]

	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil || !claims.CanAccess(tenantID) {
		writeError(w, http.StatusForbidden, "token does not grant access to this tenant")
		return
	}

	var body commandBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	req := &command.Request{
		TenantID:     tenantID,
		NotifyTarget: body.NotifyTarget,
		User:         claims.Username,
		Args:         body.Args,
		RequestID:    uuid.NewString(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.commandTimeout)
	defer cancel()

	resp, err := h.table.Execute(ctx, name, req)
	if err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, commandReply{
		RequestID: req.RequestID,
		Command:   name,
		Content:   resp.Content,
		Embed:     resp.Embed,
	})
}

// commandStatus 命令错误映射到 HTTP 状态码
func commandStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, command.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// QueueHandler GET /api/tenants/{tenant}/queue
func (h *APIHandler) QueueHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant"]

	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil || !claims.CanAccess(tenantID) {
		writeError(w, http.StatusForbidden, "token does not grant access to this tenant")
		return
	}

	q, ok := h.registry.Get(tenantID)
	if !ok {
		writeError(w, http.StatusNotFound, (&queue.NoQueueFoundError{TenantID: tenantID}).Error())
		return
	}

	reply := queueReply{TenantID: tenantID}
	q.Do(func(l *queue.Locked) {
		reply.Tracks = l.Snapshot()
		reply.LoopMode = l.LoopMode()
	})
	if reply.Tracks == nil {
		reply.Tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, reply)
}

// ListCommandsHandler GET /api/commands
func (h *APIHandler) ListCommandsHandler(w http.ResponseWriter, r *http.Request) {
	cmds := h.table.List()
	out := make([]commandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, commandInfo{Name: c.Name(), Description: c.Description()})
	}
	writeJSON(w, http.StatusOK, out)
}

// ChannelWebSocketHandler 订阅租户的通知频道 /ws/tenants/{tenant}/channels/{target}
func (h *APIHandler) ChannelWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID, target := vars["tenant"], vars["target"]

	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil || !claims.CanAccess(tenantID) {
		writeError(w, http.StatusForbidden, "token does not grant access to this tenant")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := channel.NewClient(h.hub, conn, tenantID, target)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background())

	logger.Info("channel subscriber connected",
		logger.Tenant(tenantID),
		logger.String("channel", target),
		logger.String("user", claims.Username))
}

// HealthHandler GET /health
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"tenants": h.registry.Len(),
	})
}
