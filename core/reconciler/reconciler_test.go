package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"GuildFM/core/queue"
	"GuildFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlayer 记录发往节点的命令
type fakePlayer struct {
	mu      sync.Mutex
	ops     []string
	playErr error
	stopErr error
}

func (p *fakePlayer) Play(_ context.Context, tenantID, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, fmt.Sprintf("play %s %s", tenantID, handle))
	return p.playErr
}

func (p *fakePlayer) Stop(_ context.Context, tenantID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, "stop "+tenantID)
	return p.stopErr
}

func (p *fakePlayer) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

type sentNotification struct {
	target string
	n      model.Notification
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, target string, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{target: target, n: n})
	return f.err
}

type fakeHistory struct {
	rows []*model.PlayHistory
}

func (f *fakeHistory) Record(_ context.Context, h *model.PlayHistory) error {
	f.rows = append(f.rows, h)
	return nil
}

type fakeMirror struct {
	saved    map[string][]model.Track
	versions map[string]uint64
}

func (f *fakeMirror) Save(_ context.Context, tenantID string, state queue.State) error {
	if f.saved == nil {
		f.saved = make(map[string][]model.Track)
		f.versions = make(map[string]uint64)
	}
	f.saved[tenantID] = state.Tracks
	f.versions[tenantID] = state.Version
	return nil
}

func track(handle, target string) model.Track {
	return model.NewTrack(handle, model.TrackInfo{
		Identifier: handle,
		Title:      model.StringPtr("Title " + handle),
		Author:     model.StringPtr("Author " + handle),
		URI:        "https://example.com/" + handle,
		Length:     180_000,
	}, target)
}

func handles(tracks []model.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Handle
	}
	return out
}

type fixture struct {
	registry *queue.Registry
	player   *fakePlayer
	notifier *fakeNotifier
	history  *fakeHistory
	mirror   *fakeMirror
	rec      *Reconciler
}

func newFixture() *fixture {
	f := &fixture{
		registry: queue.NewRegistry(),
		player:   &fakePlayer{},
		notifier: &fakeNotifier{},
		history:  &fakeHistory{},
		mirror:   &fakeMirror{},
	}
	f.rec = New(f.registry, f.player, f.notifier, Options{History: f.history, Mirror: f.mirror})
	return f
}

func (f *fixture) seed(tenantID string, mode model.LoopMode, tracks ...model.Track) *queue.Queue {
	q := f.registry.GetOrCreate(tenantID)
	for _, t := range tracks {
		q.Push(t)
	}
	q.SetLoopMode(mode)
	return q
}

func ended(tenantID, handle string) model.NodeEvent {
	return model.NodeEvent{Kind: model.EventTrackEnded, TenantID: tenantID, TrackHandle: handle, Reason: "FINISHED"}
}

func TestTrackEnded_LoopTrackReplaysHead(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopTrack, track("A", "c1"), track("B", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"A", "B"}, handles(q.Snapshot()))
	assert.Equal(t, []string{"play g1 A"}, f.player.recorded())
	assert.Empty(t, f.notifier.sent)
}

func TestTrackEnded_LoopQueueRotates(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopQueue, track("A", "c1"), track("B", "c1"), track("C", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"B", "C", "A"}, handles(q.Snapshot()))
	assert.Equal(t, []string{"play g1 B"}, f.player.recorded())
	assert.Equal(t, []string{"B", "C", "A"}, handles(f.mirror.saved["g1"]))
	assert.Equal(t, q.State().Version, f.mirror.versions["g1"])
}

func TestTrackEnded_LoopQueueSingleTrack(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopQueue, track("A", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"A"}, handles(q.Snapshot()))
	assert.Equal(t, []string{"play g1 A"}, f.player.recorded())
}

func TestTrackEnded_NoLoopAdvances(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"B"}, handles(q.Snapshot()))
	assert.Equal(t, []string{"play g1 B"}, f.player.recorded())
	assert.Empty(t, f.notifier.sent)
}

func TestTrackEnded_NoLoopEndOfQueue(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopNone, track("A", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.True(t, q.IsEmpty())
	assert.Equal(t, []string{"stop g1"}, f.player.recorded())
	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "c1", sent.target)
	assert.Equal(t, model.NotifyEndOfQueue, sent.n.Kind)
	require.NotNil(t, sent.n.Embed)
	assert.Equal(t, "End of queue", sent.n.Embed.Title)
	assert.Equal(t, model.EmbedColor, sent.n.Embed.Color)
}

func TestTrackEnded_EmptyQueueIsNoop(t *testing.T) {
	f := newFixture()
	f.seed("g1", model.LoopNone)

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Empty(t, f.player.recorded())
	assert.Empty(t, f.notifier.sent)
}

func TestTrackEnded_StaleHandleDiscardedInEveryMode(t *testing.T) {
	for _, mode := range []model.LoopMode{model.LoopNone, model.LoopQueue, model.LoopTrack} {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture()
			q := f.seed("g1", mode, track("A", "c1"), track("B", "c1"))

			require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "Z")))

			assert.Equal(t, []string{"A", "B"}, handles(q.Snapshot()))
			assert.Empty(t, f.player.recorded())
		})
	}
}

func TestTrackEnded_EmptyHandleMatchesHead(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "")))

	assert.Equal(t, []string{"B"}, handles(q.Snapshot()))
}

func TestTrackEnded_DuplicateEventDoesNotDoubleAdvance(t *testing.T) {
	f := newFixture()
	q := f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c1"), track("C", "c1"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))
	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"B", "C"}, handles(q.Snapshot()))
	assert.Equal(t, []string{"play g1 B"}, f.player.recorded())
}

func TestTrackEnded_MissingQueue(t *testing.T) {
	f := newFixture()

	err := f.rec.HandleEvent(context.Background(), ended("ghost", "A"))

	assert.ErrorIs(t, err, queue.ErrNoQueueFound)
	var nq *queue.NoQueueFoundError
	require.ErrorAs(t, err, &nq)
	assert.Equal(t, "ghost", nq.TenantID)
	assert.Empty(t, f.player.recorded())
	assert.Equal(t, 0, f.registry.Len())
}

func TestTrackEnded_NodeFailureKeepsMutation(t *testing.T) {
	f := newFixture()
	f.player.playErr = errors.New("socket closed")
	q := f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c1"))

	err := f.rec.HandleEvent(context.Background(), ended("g1", "A"))

	assert.ErrorIs(t, err, ErrNodeCommandFailed)
	assert.Equal(t, []string{"B"}, handles(q.Snapshot()))
}

func TestTrackEnded_EndOfQueueFailures(t *testing.T) {
	f := newFixture()
	f.player.stopErr = errors.New("node gone")
	f.notifier.err = errors.New("channel deleted")
	q := f.seed("g1", model.LoopNone, track("A", "c1"))

	err := f.rec.HandleEvent(context.Background(), ended("g1", "A"))

	assert.ErrorIs(t, err, ErrNodeCommandFailed)
	assert.ErrorIs(t, err, ErrNotificationDeliveryFailed)
	assert.True(t, q.IsEmpty())
}

func TestTrackStarted_NotifiesHeadTarget(t *testing.T) {
	f := newFixture()
	f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c2"))

	err := f.rec.HandleEvent(context.Background(), model.NodeEvent{Kind: model.EventTrackStarted, TenantID: "g1", TrackHandle: "A"})

	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "c1", sent.target)
	assert.Equal(t, model.NotifyNowPlaying, sent.n.Kind)
	assert.NotEmpty(t, sent.n.ID)
	assert.Equal(t, "Now playing", sent.n.Embed.Title)
	assert.Contains(t, sent.n.Embed.Description, "[Title A](https://example.com/A)")
	assert.Contains(t, sent.n.Embed.Description, "Author A")
	require.NotNil(t, sent.n.Track)
	assert.Equal(t, "A", sent.n.Track.Handle)

	require.Len(t, f.history.rows, 1)
	assert.Equal(t, "Title A", f.history.rows[0].Title)
	assert.Equal(t, "g1", f.history.rows[0].TenantID)
	assert.Empty(t, f.player.recorded())
}

func TestTrackStarted_EmptyOrMissingQueue(t *testing.T) {
	f := newFixture()
	f.seed("g1", model.LoopNone)

	require.NoError(t, f.rec.HandleEvent(context.Background(), model.NodeEvent{Kind: model.EventTrackStarted, TenantID: "g1"}))
	err := f.rec.HandleEvent(context.Background(), model.NodeEvent{Kind: model.EventTrackStarted, TenantID: "ghost"})

	assert.ErrorIs(t, err, queue.ErrNoQueueFound)
	assert.Empty(t, f.notifier.sent)
}

func TestTrackStarted_NotificationFailure(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("forbidden")
	f.seed("g1", model.LoopNone, track("A", "c1"))

	err := f.rec.HandleEvent(context.Background(), model.NodeEvent{Kind: model.EventTrackStarted, TenantID: "g1", TrackHandle: "A"})

	assert.ErrorIs(t, err, ErrNotificationDeliveryFailed)
}

func TestTrackEnded_TenantsAreIsolated(t *testing.T) {
	f := newFixture()
	q1 := f.seed("g1", model.LoopNone, track("A", "c1"), track("B", "c1"))
	q2 := f.seed("g2", model.LoopNone, track("X", "c2"), track("Y", "c2"))

	require.NoError(t, f.rec.HandleEvent(context.Background(), ended("g1", "A")))

	assert.Equal(t, []string{"B"}, handles(q1.Snapshot()))
	assert.Equal(t, []string{"X", "Y"}, handles(q2.Snapshot()))
}
