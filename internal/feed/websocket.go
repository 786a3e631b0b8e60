package feed

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectDelay is how long a subscription waits before redialing a
// dropped bridge connection.
const reconnectDelay = 3 * time.Second

// WebSocketFeed subscribes to the scale bridge over a websocket. Every
// message is one snapshot of the data path; the feed forwards the latest
// entry of each snapshot to the handler.
type WebSocketFeed struct {
	url       string
	connected atomic.Bool
}

var _ Feed = (*WebSocketFeed)(nil)

// NewWebSocketFeed returns a feed for the given bridge URL
// (ws://host/path). No connection is made until Subscribe.
func NewWebSocketFeed(url string) *WebSocketFeed {
	return &WebSocketFeed{url: url}
}

// Connected reports whether a bridge connection is currently up.
func (f *WebSocketFeed) Connected() bool {
	return f.connected.Load()
}

// Subscribe starts delivering readings to h from a background goroutine.
// An unreachable bridge is a degraded state, not an error: the loop
// keeps redialing until unsubscribed, and the caller observes no
// readings in the meantime.
func (f *WebSocketFeed) Subscribe(h Handler) (unsubscribe func()) {
	done := make(chan struct{})
	var once sync.Once

	go f.run(h, done)

	return func() {
		once.Do(func() { close(done) })
	}
}

func (f *WebSocketFeed) run(h Handler, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
		if err != nil {
			slog.Warn("scale bridge unreachable", "url", f.url, "error", err)
			select {
			case <-done:
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		f.connected.Store(true)
		slog.Info("scale bridge connected", "url", f.url)
		f.readLoop(conn, h, done)
		f.connected.Store(false)
		conn.Close()

		select {
		case <-done:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// readLoop forwards snapshots until the connection drops or the
// subscription ends. A goroutine watching done closes the connection to
// unblock ReadMessage.
func (f *WebSocketFeed) readLoop(conn *websocket.Conn, h Handler, done <-chan struct{}) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-done:
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("scale bridge read failed", "error", err)
			}
			return
		}
		if reading, ok := DecodeSnapshot(data); ok {
			h(reading)
		}
	}
}
