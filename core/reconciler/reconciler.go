package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GuildFM/core/metrics"
	"GuildFM/core/notify"
	"GuildFM/core/queue"
	"GuildFM/core/utils"
	"GuildFM/logger"
	"GuildFM/model"

	"github.com/google/uuid"
)

// Player 节点播放控制
type Player interface {
	Play(ctx context.Context, tenantID, handle string) error
	Stop(ctx context.Context, tenantID string) error
}

// HistoryRecorder 写入播放记录
type HistoryRecorder interface {
	Record(ctx context.Context, h *model.PlayHistory) error
}

// QueueMirror 队列只读镜像
type QueueMirror interface {
	Save(ctx context.Context, tenantID string, state queue.State) error
}

// Options 可选组件，均可为 nil
type Options struct {
	History HistoryRecorder
	Mirror  QueueMirror
	Metrics *metrics.Metrics
}

// Reconciler applies the loop-mode policy to the tenant's queue on every lifecycle event
// and issues the follow-up node command.
type Reconciler struct {
	registry *queue.Registry
	player   Player
	notifier notify.Notifier
	history  HistoryRecorder
	mirror   QueueMirror
	metrics  *metrics.Metrics
}

// New 创建 Reconciler
func New(registry *queue.Registry, player Player, notifier notify.Notifier, opts Options) *Reconciler {
	return &Reconciler{
		registry: registry,
		player:   player,
		notifier: notifier,
		history:  opts.History,
		mirror:   opts.Mirror,
		metrics:  opts.Metrics,
	}
}

// action 锁内计算出的决定，锁外执行
type action int

const (
	actionNoop action = iota
	actionStale
	actionPlay
	actionEndOfQueue
)

type decision struct {
	action   action
	outcome  string
	next     model.Track
	target   string // 仅 actionEndOfQueue
	state    queue.State
}

// HandleEvent reacts to one lifecycle event. Callers must serialize events per tenant.
func (r *Reconciler) HandleEvent(ctx context.Context, ev model.NodeEvent) error {
	r.metrics.NodeEvent(string(ev.Kind))

	switch ev.Kind {
	case model.EventTrackEnded:
		return r.handleTrackEnded(ctx, ev)
	case model.EventTrackStarted:
		return r.handleTrackStarted(ctx, ev)
	default:
		return nil
	}
}

func (r *Reconciler) handleTrackEnded(ctx context.Context, ev model.NodeEvent) error {
	q, ok := r.registry.Get(ev.TenantID)
	if !ok {
		r.metrics.Reconcile(metrics.OutcomeStale)
		logger.Warn("track ended for tenant without queue",
			logger.Tenant(ev.TenantID),
			logger.String("track", ev.TrackHandle))
		return &queue.NoQueueFoundError{TenantID: ev.TenantID}
	}

	var d decision
	q.Do(func(l *queue.Locked) {
		d = decideTrackEnded(l, ev.TrackHandle)
	})
	r.metrics.Reconcile(d.outcome)

	switch d.action {
	case actionNoop:
		logger.Debug("track ended on empty queue", logger.Tenant(ev.TenantID))
		return nil
	case actionStale:
		logger.Info("discarding stale track end",
			logger.Tenant(ev.TenantID),
			logger.String("track", ev.TrackHandle),
			logger.String("reason", ev.Reason))
		return nil
	}

	r.saveMirror(ctx, ev.TenantID, d.state)

	if d.action == actionPlay {
		if err := r.player.Play(ctx, ev.TenantID, d.next.Handle); err != nil {
			r.metrics.NodeCommandFailed("play")
			logger.Error("failed to play next track",
				logger.Tenant(ev.TenantID),
				logger.String("track", d.next.Handle),
				logger.ErrorField(err))
			return fmt.Errorf("%w: play %s: %w", ErrNodeCommandFailed, d.next.Handle, err)
		}
		return nil
	}

	// 队列已播完
	logger.Debug("End of queue", logger.Tenant(ev.TenantID))
	var errs []error
	if err := r.player.Stop(ctx, ev.TenantID); err != nil {
		r.metrics.NodeCommandFailed("stop")
		logger.Error("failed to stop player", logger.Tenant(ev.TenantID), logger.ErrorField(err))
		errs = append(errs, fmt.Errorf("%w: stop: %w", ErrNodeCommandFailed, err))
	}
	n := r.newNotification(ev.TenantID, model.NotifyEndOfQueue, utils.EndOfQueueEmbed())
	n.Content = "End of queue"
	if err := r.notify(ctx, d.target, n); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// decideTrackEnded 在队列锁内执行，不做任何 I/O
func decideTrackEnded(l *queue.Locked, handle string) decision {
	head, err := l.Peek()
	if err != nil {
		return decision{action: actionNoop, outcome: metrics.OutcomeNoop}
	}
	if handle != "" && head.Handle != handle {
		return decision{action: actionStale, outcome: metrics.OutcomeStale}
	}

	var d decision
	switch l.LoopMode() {
	case model.LoopTrack:
		d.action, d.outcome, d.next = actionPlay, metrics.OutcomeReplay, head
	case model.LoopQueue:
		l.Pop()
		l.Push(head)
		next, _ := l.Peek()
		d.action, d.outcome, d.next = actionPlay, metrics.OutcomePlay, next
	default:
		l.Pop()
		if next, err := l.Peek(); err == nil {
			d.action, d.outcome, d.next = actionPlay, metrics.OutcomePlay, next
		} else {
			d.action, d.outcome, d.target = actionEndOfQueue, metrics.OutcomeStop, head.NotifyTarget
		}
	}
	d.state = l.State()
	return d
}

func (r *Reconciler) handleTrackStarted(ctx context.Context, ev model.NodeEvent) error {
	q, ok := r.registry.Get(ev.TenantID)
	if !ok {
		logger.Warn("track started for tenant without queue", logger.Tenant(ev.TenantID))
		return &queue.NoQueueFoundError{TenantID: ev.TenantID}
	}

	var (
		head  model.Track
		err   error
		state queue.State
	)
	q.Do(func(l *queue.Locked) {
		head, err = l.Peek()
		state = l.State()
	})
	if err != nil {
		logger.Debug("track started on empty queue", logger.Tenant(ev.TenantID))
		return nil
	}

	r.saveMirror(ctx, ev.TenantID, state)
	if r.history != nil {
		if err := r.history.Record(ctx, model.NewPlayHistory(ev.TenantID, head)); err != nil {
			logger.Warn("failed to record play history", logger.Tenant(ev.TenantID), logger.ErrorField(err))
		}
	}

	n := r.newNotification(ev.TenantID, model.NotifyNowPlaying, utils.NowPlayingEmbed(head))
	n.Track = &head
	return r.notify(ctx, head.NotifyTarget, n)
}

func (r *Reconciler) newNotification(tenantID string, kind model.NotificationKind, embed *model.Embed) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		TenantID:  tenantID,
		Embed:     embed,
		CreatedAt: time.Now(),
	}
}

func (r *Reconciler) notify(ctx context.Context, target string, n model.Notification) error {
	if err := r.notifier.Notify(ctx, target, n); err != nil {
		r.metrics.NotificationFailed()
		logger.Warn("failed to deliver notification",
			logger.Tenant(n.TenantID),
			logger.String("target", target),
			logger.String("kind", string(n.Kind)),
			logger.ErrorField(err))
		return fmt.Errorf("%w: %w", ErrNotificationDeliveryFailed, err)
	}
	return nil
}

func (r *Reconciler) saveMirror(ctx context.Context, tenantID string, state queue.State) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.Save(ctx, tenantID, state); err != nil {
		logger.Warn("failed to mirror queue", logger.Tenant(tenantID), logger.ErrorField(err))
	}
}
