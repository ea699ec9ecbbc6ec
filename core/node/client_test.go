package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"GuildFM/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode 模拟音频节点：把收到的操作写入 ops，并推送 script 中的消息
type fakeNode struct {
	server *httptest.Server
	ops    chan outgoingOp
	auth   chan string
	script []string
}

func newFakeNode(t *testing.T, script ...string) *fakeNode {
	t.Helper()
	n := &fakeNode{
		ops:    make(chan outgoingOp, 16),
		auth:   make(chan string, 1),
		script: script,
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range n.script {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var op outgoingOp
			if json.Unmarshal(data, &op) == nil {
				n.ops <- op
			}
		}
	}))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) wsURL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

func TestClient_ReadPumpDeliversLifecycleEventsInOrder(t *testing.T) {
	node := newFakeNode(t,
		`{"op":"stats","players":1}`,
		`{"op":"event","type":"TrackStartEvent","guildId":"g1","track":"A"}`,
		`{"op":"playerUpdate","guildId":"g1","state":{"time":1,"position":4200,"connected":true}}`,
		`{"op":"event","type":"TrackExceptionEvent","guildId":"g1","track":"A"}`,
		`{"op":"event","type":"TrackEndEvent","guildId":"g1","track":"A","reason":"FINISHED"}`,
		`not json`,
	)
	c := NewClient(Config{WSURL: node.wsURL(), Password: "secret", UserID: "42"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, "secret", <-node.auth)

	events := make(chan model.NodeEvent, 4)
	go c.ReadPump(ctx, func(ev model.NodeEvent) { events <- ev })

	first := <-events
	second := <-events
	assert.Equal(t, model.NodeEvent{Kind: model.EventTrackStarted, TenantID: "g1", TrackHandle: "A"}, first)
	assert.Equal(t, model.NodeEvent{Kind: model.EventTrackEnded, TenantID: "g1", TrackHandle: "A", Reason: "FINISHED"}, second)
	assert.Equal(t, uint64(4200), c.Position("g1"))
}

func TestClient_PlayerOps(t *testing.T) {
	node := newFakeNode(t)
	c := NewClient(Config{WSURL: node.wsURL()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	<-node.auth

	require.NoError(t, c.Play(ctx, "g1", "A"))
	require.NoError(t, c.Pause(ctx, "g1", true))
	assert.True(t, c.Paused("g1"))
	require.NoError(t, c.Stop(ctx, "g1"))
	require.NoError(t, c.Destroy(ctx, "g1"))
	assert.False(t, c.Paused("g1"))

	play := <-node.ops
	assert.Equal(t, outgoingOp{Op: "play", GuildID: "g1", Track: "A"}, play)
	pause := <-node.ops
	require.NotNil(t, pause.Pause)
	assert.True(t, *pause.Pause)
	assert.Equal(t, "stop", (<-node.ops).Op)
	assert.Equal(t, "destroy", (<-node.ops).Op)
}

func TestClient_OpsWithoutConnection(t *testing.T) {
	c := NewClient(Config{})

	err := c.Play(context.Background(), "g1", "A")

	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loadtracks", r.URL.Path)
		assert.Equal(t, "ytsearch:lofi beats", r.URL.Query().Get("identifier"))
		assert.Equal(t, "pw", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"loadType":"SEARCH_RESULT","playlistInfo":{},"tracks":[
			{"track":"QAAA","info":{"identifier":"abc","title":"Lofi","author":"Someone","uri":"https://yt/abc","length":123000,"isStream":false,"isSeekable":true}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{HTTPURL: srv.URL + "/", Password: "pw"})
	res, err := c.Resolve(context.Background(), SearchIdentifier("lofi beats"))

	require.NoError(t, err)
	assert.Equal(t, LoadSearchResult, res.LoadType)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "QAAA", res.Tracks[0].Track)
	assert.Equal(t, "Lofi", *res.Tracks[0].Info.Title)
	assert.Equal(t, uint64(123000), res.Tracks[0].Info.Length)
}

func TestClient_ResolveHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad auth", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{HTTPURL: srv.URL})
	_, err := c.Resolve(context.Background(), "https://example.com/x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSearchIdentifier(t *testing.T) {
	assert.Equal(t, "https://youtu.be/x", SearchIdentifier("https://youtu.be/x"))
	assert.Equal(t, "ytsearch:never gonna", SearchIdentifier("  never gonna "))
}

func TestToNodeEvent_NonLifecycleEventsAreNotDelivered(t *testing.T) {
	for _, raw := range []string{
		`{"op":"event","type":"TrackExceptionEvent","guildId":"g1","track":"A","exception":{"message":"decode failed","severity":"COMMON"}}`,
		`{"op":"event","type":"TrackStuckEvent","guildId":"g1","track":"A","thresholdMs":10000}`,
		`{"op":"event","type":"WebSocketClosedEvent","guildId":"g1","code":4006,"reason":"Session invalid","byRemote":true}`,
		`{"op":"event","type":"SomethingNewEvent","guildId":"g1"}`,
	} {
		var msg incomingMessage
		require.NoError(t, json.Unmarshal([]byte(raw), &msg))

		_, ok := toNodeEvent(msg)
		assert.False(t, ok, msg.Type)
	}

	var msg incomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{"op":"event","type":"TrackExceptionEvent","exception":{"message":"boom","severity":"FAULT"}}`), &msg))
	require.NotNil(t, msg.Exception)
	assert.Equal(t, "boom", msg.Exception.Message)
}
