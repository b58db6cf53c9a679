package output

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 54 * time.Second
)

// WebSocketSink broadcasts every Record as JSON to every currently
// connected client: one outbound channel and write pump per client, a ping
// ticker to keep intermediaries from closing an idle connection, and a
// non-blocking send so one slow client never stalls the Output worker.
type WebSocketSink struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn    *websocket.Conn
	outChan chan Record
	done    chan struct{}
	once    sync.Once
}

func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{clients: make(map[*wsClient]struct{})}
}

// AddClient registers an accepted websocket connection to receive every
// future broadcast. Call this from the HTTP upgrade handler.
func (s *WebSocketSink) AddClient(conn *websocket.Conn) {
	client := &wsClient{
		conn:    conn,
		outChan: make(chan Record, 50),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	go s.writePump(client)
	go s.pingPump(client)
}

func (s *WebSocketSink) writePump(c *wsClient) {
	defer s.removeClient(c)
	for {
		select {
		case <-c.done:
			return
		case record, ok := <-c.outChan:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(record); err != nil {
				log.Printf("output: websocket write error: %v", err)
				return
			}
		}
	}
}

func (s *WebSocketSink) pingPump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketSink) removeClient(c *wsClient) {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *WebSocketSink) Write(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.outChan <- record:
		default:
			log.Printf("output: websocket client outbound queue full, dropping record")
		}
	}
	return nil
}

func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.once.Do(func() {
			close(c.done)
			c.conn.Close()
		})
	}
	s.clients = make(map[*wsClient]struct{})
	return nil
}

var _ Sink = (*WebSocketSink)(nil)
