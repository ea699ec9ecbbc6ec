package queue

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"GuildFM/model"
)

// Queue 单个租户的播放队列
// 下标 0 即节点当前加载/播放的曲目；所有操作在同一把互斥锁下串行执行
type Queue struct {
	mu       sync.Mutex
	tracks   []model.Track
	loopMode model.LoopMode
	version  uint64
}

// versionSeq 进程内所有队列共享，队列销毁重建后版本号依然单调递增
var versionSeq atomic.Uint64

// State is a versioned copy of a queue. A higher Version always reflects a later mutation,
// even across queues recreated for the same tenant.
type State struct {
	Version  uint64
	Tracks   []model.Track
	LoopMode model.LoopMode
}

// New 创建空队列，循环模式默认为 LoopNone
func New() *Queue {
	return &Queue{}
}

// Push 追加到队尾
func (q *Queue) Push(track model.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.push(track)
}

// Pop 移除并返回队首
func (q *Queue) Pop() (model.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Peek 返回队首的副本，不移除
func (q *Queue) Peek() (model.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peek()
}

// IsEmpty 队列是否为空
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks) == 0
}

// Len 队列长度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Snapshot returns a copy of the whole queue. The copy does not change with later mutations
// and can be iterated without holding the lock.
func (q *Queue) Snapshot() []model.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot()
}

// Clear 清空队列，不修改循环模式
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clear()
}

// Shuffle uniformly permutes the entire queue, index 0 included. The head no longer matches
// what the node is playing until the next TrackEnded; use ShuffleUpcoming to keep it.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	shuffleTracks(q.tracks)
	q.bump()
}

// ShuffleUpcoming 打乱除队首外的所有曲目，队首保持为正在播放的曲目
func (q *Queue) ShuffleUpcoming() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuffleUpcoming()
}

// SetLoopMode 设置循环模式
func (q *Queue) SetLoopMode(mode model.LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.setLoopMode(mode)
}

// LoopMode 当前循环模式
func (q *Queue) LoopMode() model.LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loopMode
}

// State 返回带版本号的快照
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state()
}

// Do runs fn while holding the queue lock, so a read-decide-mutate sequence is atomic.
// fn must only touch memory: no network calls, no channel sends, no other queue.
func (q *Queue) Do(fn func(l *Locked)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(&Locked{q: q})
}

// ========== 内部方法（调用方需持有锁） ==========

func (q *Queue) bump() {
	q.version = versionSeq.Add(1)
}

func (q *Queue) push(track model.Track) {
	q.tracks = append(q.tracks, track)
	q.bump()
}

func (q *Queue) pop() (model.Track, error) {
	if len(q.tracks) == 0 {
		return model.Track{}, ErrEmptyQueue
	}
	head := q.tracks[0]
	q.tracks[0] = model.Track{}
	q.tracks = q.tracks[1:]
	q.bump()
	return head, nil
}

func (q *Queue) peek() (model.Track, error) {
	if len(q.tracks) == 0 {
		return model.Track{}, ErrEmptyQueue
	}
	return q.tracks[0], nil
}

func (q *Queue) snapshot() []model.Track {
	out := make([]model.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

func (q *Queue) state() State {
	return State{Version: q.version, Tracks: q.snapshot(), LoopMode: q.loopMode}
}

func (q *Queue) clear() {
	q.tracks = nil
	q.bump()
}

func (q *Queue) shuffleUpcoming() {
	if len(q.tracks) > 2 {
		shuffleTracks(q.tracks[1:])
		q.bump()
	}
}

func (q *Queue) setLoopMode(mode model.LoopMode) {
	q.loopMode = mode
	q.bump()
}

func shuffleTracks(tracks []model.Track) {
	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}

// Locked 持有锁期间的队列视图，只在 Do 的回调内有效
type Locked struct {
	q *Queue
}

func (l *Locked) Push(track model.Track) { l.q.push(track) }
func (l *Locked) Pop() (model.Track, error) { return l.q.pop() }
func (l *Locked) Peek() (model.Track, error) { return l.q.peek() }
func (l *Locked) Len() int { return len(l.q.tracks) }
func (l *Locked) IsEmpty() bool { return len(l.q.tracks) == 0 }
func (l *Locked) Snapshot() []model.Track { return l.q.snapshot() }
func (l *Locked) Clear() { l.q.clear() }
func (l *Locked) ShuffleUpcoming() { l.q.shuffleUpcoming() }
func (l *Locked) LoopMode() model.LoopMode { return l.q.loopMode }
func (l *Locked) SetLoopMode(m model.LoopMode) { l.q.setLoopMode(m) }
func (l *Locked) Version() uint64 { return l.q.version }
func (l *Locked) State() State { return l.q.state() }
