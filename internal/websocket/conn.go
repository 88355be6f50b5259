// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dosehub/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
)

// Liveness is the heartbeat state of a connection.
type Liveness int32

const (
	LivenessAlive Liveness = iota
	LivenessSuspect
)

func (l Liveness) String() string {
	if l == LivenessSuspect {
		return "SUSPECT"
	}
	return "ALIVE"
}

// connSeq orders connections by accept time for deterministic fan-out.
var connSeq atomic.Uint64

// Conn is one accepted client connection. Frames are queued on send and
// written by a single writer goroutine, so per-connection delivery order is the
// order frames were queued.
type Conn struct {
	id          string
	seq         uint64
	ws          *websocket.Conn
	connectedAt time.Time

	send       chan []byte
	ping       chan struct{}
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	closeCode  int
	closeText  string

	lastLiveness atomic.Int64
	liveness     atomic.Int32
	limiter      *rate.Limiter

	// Guarded by Registry.mu.
	auth          AuthState
	subscriptions map[string]struct{}
	rooms         map[string]struct{}
}

func newConn(ws *websocket.Conn, sendBuffer int, limiter *rate.Limiter, now time.Time) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}
	c := &Conn{
		id:            uuid.NewString(),
		seq:           connSeq.Add(1),
		ws:            ws,
		connectedAt:   now,
		send:          make(chan []byte, sendBuffer),
		ping:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		writerDone:    make(chan struct{}),
		closeCode:     websocket.CloseNormalClosure,
		limiter:       limiter,
		auth:          Unauthenticated{},
		subscriptions: make(map[string]struct{}),
		rooms:         make(map[string]struct{}),
	}
	c.lastLiveness.Store(now.UnixNano())
	return c
}

// ID returns the server-assigned connection id.
func (c *Conn) ID() string { return c.id }

// ConnectedAt returns the accept time.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// LastLiveness returns the last time any evidence of life was observed.
func (c *Conn) LastLiveness() time.Time { return time.Unix(0, c.lastLiveness.Load()) }

// Liveness returns the current heartbeat state.
func (c *Conn) Liveness() Liveness { return Liveness(c.liveness.Load()) }

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) touch(now time.Time) {
	c.lastLiveness.Store(now.UnixNano())
	c.liveness.Store(int32(LivenessAlive))
}

// requestPing asks the writer to send a ping and marks the connection
// suspect. A pending ping is not duplicated.
func (c *Conn) requestPing() {
	c.liveness.Store(int32(LivenessSuspect))
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

// enqueue queues a frame for the writer, waiting at most timeout for room.
func (c *Conn) enqueue(frame []byte, timeout time.Duration) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close closes the connection with a normal closure.
func (c *Conn) Close() {
	c.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith closes the connection with the given close code. Frames already
// queued are still flushed by the writer before the close frame. Only the
// first call has any effect.
func (c *Conn) CloseWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
		if c.ws == nil {
			close(c.writerDone)
		}
	})
}

// forceClose drops the transport without waiting for the writer.
func (c *Conn) forceClose() {
	c.CloseWith(websocket.CloseGoingAway, "")
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// writePump pumps queued frames and heartbeat pings to the transport.
func (c *Conn) writePump() {
	defer func() {
		_ = c.ws.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}
			metrics.WSMessagesSent.Inc()
		case <-c.ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.CloseWith(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return
		}
	}
}

// flush writes whatever is still queued without blocking for more.
func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
