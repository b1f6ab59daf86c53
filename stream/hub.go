package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	lob "github.com/lobforge/lobsim"
)

const (
	writeTimeout = 2 * time.Second
	readLimit    = 512 // inbound frames are ignored; keep them small
)

// subscriber is one attached client. Frames arrive through a single-slot
// mailbox, so a slow reader only ever delays itself and always receives the
// latest snapshot next.
type subscriber struct {
	id   string
	conn *websocket.Conn
	box  *Mailbox[[]byte]
	done chan struct{}
	once sync.Once
	busy atomic.Bool // a frame is being written right now
}

// idle reports that no frame is pending or mid-write.
func (s *subscriber) idle() bool {
	return s.box.Empty() && !s.busy.Load()
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writeLoop drains the mailbox onto the connection. A failed write gets one
// retry; a second failure drops the subscriber.
func (s *subscriber) writeLoop(h *Hub) {
	defer h.remove(s)

	for {
		select {
		case <-s.done:
			return
		case <-s.box.Notify():
		}

		s.busy.Store(true)
		frame, ok := s.box.Take()
		if !ok {
			s.busy.Store(false)
			continue
		}

		err := s.write(frame)
		if err != nil {
			lob.Logger().Debug("subscriber write failed, retrying",
				"id", s.id, "err", err)
			err = s.write(frame)
		}
		s.busy.Store(false)
		if err != nil {
			lob.Logger().Info("dropping slow subscriber", "id", s.id, "err", err)
			return
		}
	}
}

func (s *subscriber) write(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// readLoop discards inbound traffic and notices disconnects.
func (s *subscriber) readLoop() {
	s.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.close()
			return
		}
	}
}

// Hub fans snapshot frames out to all subscribers. Delivery is concurrent
// per subscriber; one stalled connection never delays the others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	max    int
	closed bool
}

// NewHub creates a hub admitting at most max subscribers.
func NewHub(max int) *Hub {
	return &Hub{
		subs: make(map[string]*subscriber),
		max:  max,
	}
}

// Register admits a connection and starts its read and write loops.
// Connections beyond the cap are rejected with ErrTooManySubscribers.
func (h *Hub) Register(conn *websocket.Conn) (string, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", lob.ErrShutdown
	}
	if len(h.subs) >= h.max {
		h.mu.Unlock()
		return "", lob.ErrTooManySubscribers
	}

	sub := &subscriber{
		id:   xid.New().String(),
		conn: conn,
		box:  NewMailbox[[]byte](),
		done: make(chan struct{}),
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.writeLoop(h)
	go sub.readLoop()

	lob.Logger().Info("subscriber joined", "id", sub.id, "count", h.Count())
	return sub.id, nil
}

func (h *Hub) remove(sub *subscriber) {
	sub.close()

	h.mu.Lock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		lob.Logger().Info("subscriber left", "id", sub.id,
			"dropped_frames", sub.box.Drops(), "count", len(h.subs))
	}
	h.mu.Unlock()
}

// Broadcast hands one frame to every subscriber's mailbox. It never blocks
// on subscriber I/O.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.box.Put(frame) {
			lob.Logger().Debug("frame dropped for slow subscriber",
				"id", sub.id, "dropped_frames", sub.box.Drops())
		}
	}
}

// Count returns the number of attached subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber immediately and rejects future registrations.
func (h *Hub) Close() {
	for _, sub := range h.detach() {
		sub.close()
	}
}

// Shutdown rejects future registrations, waits up to timeout for every
// subscriber to flush its pending frame, then closes the connections.
func (h *Hub) Shutdown(timeout time.Duration) {
	subs := h.detach()

	deadline := time.Now().Add(timeout)
	for _, sub := range subs {
		for !sub.idle() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		sub.close()
	}
}

// detach marks the hub closed and hands back the subscriber set. Write loops
// keep draining their mailboxes until the caller closes each subscriber.
func (h *Hub) detach() []*subscriber {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	return subs
}
