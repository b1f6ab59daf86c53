package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lob "github.com/lobforge/lobsim"
	"github.com/lobforge/lobsim/protocol"
)

func testServer(t *testing.T, maxSubs int) (*Server, *httptest.Server) {
	t.Helper()

	book := seededBook(t)
	srv := NewServer(ServerConfig{
		Addr:           ":0",
		TargetHz:       30,
		MaxSubscribers: maxSubs,
	}, NewSampler(book, 50))

	ts := httptest.NewServer(srv.httpSrv.Handler)
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, 4)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestSubscriberReceivesSnapshot(t *testing.T) {
	srv, ts := testServer(t, 4)
	conn := dial(t, ts)
	waitForCount(t, srv.hub, 1)

	srv.broadcastOnce()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	var snap protocol.Snapshot
	require.NoError(t, protocol.NewMsgpackSerializer().Unmarshal(frame, &snap))
	assert.Greater(t, snap.Seq, uint64(0))
	assert.NotEmpty(t, snap.Bids)
	assert.Equal(t, 9.99, snap.Bids[0].Price)
}

func TestAdmissionCap(t *testing.T) {
	srv, ts := testServer(t, 1)

	dial(t, ts)
	waitForCount(t, srv.hub, 1)

	// second connection is rejected at handshake
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	srv, ts := testServer(t, 4)

	fast := dial(t, ts)
	dial(t, ts) // slow subscriber: never reads
	waitForCount(t, srv.hub, 2)

	// broadcast a burst; the fast client must keep receiving while the slow
	// one's mailbox coalesces to the latest frame
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			srv.broadcastOnce()
			time.Sleep(time.Millisecond)
		}
	}()

	received := 0
	fast.SetReadDeadline(time.Now().Add(3 * time.Second))
	for received < 10 {
		_, _, err := fast.ReadMessage()
		require.NoError(t, err)
		received++
	}
	<-done

	assert.GreaterOrEqual(t, received, 10)
	assert.Equal(t, 2, srv.hub.Count())
}

func TestMailboxCoalescesForStalledSubscriber(t *testing.T) {
	srv, ts := testServer(t, 4)

	dial(t, ts) // never reads
	waitForCount(t, srv.hub, 1)

	// grab the subscriber's mailbox
	srv.hub.mu.RLock()
	var sub *subscriber
	for _, s := range srv.hub.subs {
		sub = s
	}
	srv.hub.mu.RUnlock()
	require.NotNil(t, sub)

	// burst directly into the hub faster than the write loop can drain
	for i := 0; i < 1000; i++ {
		srv.hub.Broadcast([]byte{byte(i)})
	}

	// latest-wins: most frames were overwritten, none were queued
	assert.Greater(t, sub.box.Drops(), uint64(0))
}

func TestBroadcastLogsOverwrittenFrames(t *testing.T) {
	var buf bytes.Buffer
	prev := lob.Logger()
	lob.SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer lob.SetLogger(prev)

	// a subscriber with no running write loop never drains its mailbox
	h := NewHub(4)
	sub := &subscriber{id: "stalled", box: NewMailbox[[]byte](), done: make(chan struct{})}
	h.subs[sub.id] = sub

	h.Broadcast([]byte{1})
	h.Broadcast([]byte{2})

	assert.Equal(t, uint64(1), sub.box.Drops())
	assert.Contains(t, buf.String(), "frame dropped for slow subscriber")
}

func TestSubscriberDisconnectCleansUp(t *testing.T) {
	srv, ts := testServer(t, 4)

	conn := dial(t, ts)
	waitForCount(t, srv.hub, 1)

	conn.Close()
	waitForCount(t, srv.hub, 0)
}

func TestShutdownFlushesPendingFrames(t *testing.T) {
	srv, ts := testServer(t, 4)
	conn := dial(t, ts)
	waitForCount(t, srv.hub, 1)

	// the frame sits in the mailbox; shutdown must let it reach the client
	// before closing the connection
	srv.broadcastOnce()
	srv.hub.Shutdown(time.Second)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.NotEmpty(t, frame)

	// once flushed, the connection is gone
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubCloseRejectsRegistration(t *testing.T) {
	srv, ts := testServer(t, 4)
	srv.hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	// the upgrade may complete before the hub rejects; either a dial error
	// or an immediate read failure is acceptable
	if err == nil {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, readErr := conn.ReadMessage()
		assert.Error(t, readErr)
		conn.Close()
	}
	assert.Equal(t, 0, srv.hub.Count())
}
