package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"GuildFM/core/metrics"
	"GuildFM/core/node"
	"GuildFM/core/queue"
	"GuildFM/core/voice"
	"GuildFM/logger"
	"GuildFM/model"
	"GuildFM/storage"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// 用户可见的通用回复
const (
	msgNotInVoice  = "I'm not in a voice channel"
	msgNoQueue     = "No tracks queued"
	msgEmptyQueue  = "The queue is empty"
	msgUnavailable = "This feature is not configured"
)

// Command is one entry of the static command table.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request 一次命令调用
type Request struct {
	TenantID     string            `json:"tenantId"`
	NotifyTarget string            `json:"notifyTarget"` // 入队曲目的通知目标
	User         string            `json:"user"`
	Args         map[string]string `json:"args"`
	RequestID    string            `json:"requestId"`
}

// Arg 读取参数，去除首尾空白
func (r *Request) Arg(name string) string {
	return strings.TrimSpace(r.Args[name])
}

// Response 命令回复：纯文本或卡片
type Response struct {
	Content string       `json:"content,omitempty"`
	Embed   *model.Embed `json:"embed,omitempty"`
}

func reply(content string) (*Response, error) {
	return &Response{Content: content}, nil
}

func replyEmbed(embed *model.Embed) (*Response, error) {
	return &Response{Embed: embed}, nil
}

// Node 命令需要的节点能力，*node.Client 实现此接口
type Node interface {
	Play(ctx context.Context, tenantID, handle string) error
	Stop(ctx context.Context, tenantID string) error
	Pause(ctx context.Context, tenantID string, pause bool) error
	Destroy(ctx context.Context, tenantID string) error
	Resolve(ctx context.Context, identifier string) (*node.LoadResult, error)
	Position(tenantID string) uint64
	Paused(tenantID string) bool
}

// Exporter 歌单导出
type Exporter interface {
	Export(ctx context.Context, tenantID string, tracks []model.Track) (*storage.Export, error)
}

// HistoryReader 播放记录查询
type HistoryReader interface {
	Recent(ctx context.Context, tenantID string, limit int) ([]*model.PlayHistory, error)
}

// QueueMirror 队列镜像
type QueueMirror interface {
	Save(ctx context.Context, tenantID string, state queue.State) error
}

// Deps 命令依赖，Exporter/History/Mirror/Metrics 可为 nil，Voice 为 nil 时使用新的 Tracker
type Deps struct {
	Registry *queue.Registry
	Node     Node
	Voice    *voice.Tracker
	Exporter Exporter
	History  HistoryReader
	Mirror   QueueMirror
	Metrics  *metrics.Metrics
}

// Table is the static name -> Command lookup built once at startup.
type Table struct {
	commands map[string]Command
	metrics  *metrics.Metrics
}

// NewTable 注册所有命令
func NewTable(deps Deps) *Table {
	if deps.Voice == nil {
		deps.Voice = voice.NewTracker()
	}
	d := &deps
	t := &Table{commands: make(map[string]Command), metrics: deps.Metrics}
	for _, c := range []Command{
		&joinCommand{d},
		&leaveCommand{d},
		&playCommand{d},
		&skipCommand{d},
		&stopCommand{d},
		&shuffleCommand{d},
		&queueCommand{d},
		&nowPlayingCommand{d},
		&loopCommand{d},
		&pauseCommand{d, true},
		&pauseCommand{d, false},
		&exportCommand{d},
		&historyCommand{d},
	} {
		t.commands[c.Name()] = c
	}
	return t
}

// Get 按名称查找命令
func (t *Table) Get(name string) (Command, bool) {
	c, ok := t.commands[name]
	return c, ok
}

// List 所有命令，按名称排序
func (t *Table) List() []Command {
	out := make([]Command, 0, len(t.commands))
	for _, c := range t.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute 查找并执行命令
func (t *Table) Execute(ctx context.Context, name string, req *Request) (*Response, error) {
	c, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	logger.Info("executing command",
		logger.String("command", name),
		logger.Tenant(req.TenantID),
		logger.String("user", req.User),
		logger.String("requestId", req.RequestID))

	resp, err := c.Execute(ctx, req)
	t.metrics.Command(name, err)
	if err != nil {
		logger.Warn("command failed",
			logger.String("command", name),
			logger.Tenant(req.TenantID),
			logger.String("requestId", req.RequestID),
			logger.ErrorField(err))
	}
	return resp, err
}

// ========== 公共辅助 ==========

func (d *Deps) inVoice(tenantID string) bool {
	return d.Voice.IsConnected(tenantID)
}

func (d *Deps) refreshMirror(ctx context.Context, tenantID string, q *queue.Queue) {
	if d.Mirror == nil {
		return
	}
	if err := d.Mirror.Save(ctx, tenantID, q.State()); err != nil {
		logger.Warn("failed to mirror queue", logger.Tenant(tenantID), logger.ErrorField(err))
	}
}
