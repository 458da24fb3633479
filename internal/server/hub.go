package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// writeWait bounds a single socket write
const writeWait = 10 * time.Second

// client is one WebSocket connection. The reader goroutine lives in
// ws.go; writePump here owns all writes, per the gorilla one-writer rule.
type client struct {
	id   string
	conn *websocket.Conn

	mu          sync.Mutex
	sessionCode string
	role        types.Role
	playerID    string

	// Outbound buffering. Incremental events queue FIFO up to queueCap;
	// snapshot events keep only the latest frame per type, drained ahead
	// of the queue so a saturated socket still gets current state.
	queue     [][]byte
	snaps     map[protocol.EventType][]byte
	snapOrder []protocol.EventType
	drops     int
	closed    bool

	queueCap      int
	overflowLimit int
	notify        chan struct{}
}

func newClient(id string, conn *websocket.Conn, cfg Config) *client {
	return &client{
		id:            id,
		conn:          conn,
		snaps:         make(map[protocol.EventType][]byte),
		queueCap:      cfg.QueueCap,
		overflowLimit: cfg.OverflowLimit,
		notify:        make(chan struct{}, 1),
	}
}

// bind attaches the socket to a session. Called on the session worker.
func (c *client) bind(code string, role types.Role, playerID string) {
	c.mu.Lock()
	c.sessionCode = code
	c.role = role
	c.playerID = playerID
	c.mu.Unlock()
}

// binding reads the socket's session attachment
func (c *client) binding() (code string, role types.Role, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionCode, c.role, c.playerID
}

// enqueue buffers one marshaled frame. Overflow drops the oldest
// incremental frame; a socket that keeps overflowing is closed and
// treated as offline.
func (c *client) enqueue(t protocol.EventType, frame []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if t.IsSnapshot() {
		if _, seen := c.snaps[t]; !seen {
			c.snapOrder = append(c.snapOrder, t)
		}
		c.snaps[t] = frame
	} else {
		if len(c.queue) >= c.queueCap {
			c.queue = c.queue[1:]
			c.drops++
			if c.drops > c.overflowLimit {
				c.closeLocked()
				c.mu.Unlock()
				logging.LogSocketEvent("socket_overflow_closed", c.sessionCode, c.id, map[string]interface{}{
					"drops": c.drops,
				})
				return
			}
		}
		c.queue = append(c.queue, frame)
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// send marshals and buffers one event for this socket only
func (c *client) send(ev protocol.Event) {
	frame, err := ev.Marshal()
	if err != nil {
		logging.Error("failed to marshal event", map[string]interface{}{
			"event": string(ev.Type),
			"error": err.Error(),
		})
		return
	}
	c.enqueue(ev.Type, frame)
}

// next pops the next frame to write: pending snapshots first, then the
// queue. The second return is false once the client is closed and fully
// drained.
func (c *client) next() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.snapOrder) > 0 {
		t := c.snapOrder[0]
		c.snapOrder = c.snapOrder[1:]
		frame := c.snaps[t]
		delete(c.snaps, t)
		return frame, true
	}
	if len(c.queue) > 0 {
		frame := c.queue[0]
		c.queue = c.queue[1:]
		return frame, true
	}
	return nil, !c.closed
}

// writePump drains the buffers onto the wire. It exits once the client
// is closed and everything queued before the close has been written.
func (c *client) writePump() {
	for {
		frame, open := c.next()
		if frame == nil {
			if !open {
				c.conn.Close()
				return
			}
			<-c.notify
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.close()
			c.conn.Close()
			return
		}
	}
}

// close marks the client finished. Queued frames still drain; the
// reader is unblocked via the read deadline.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	c.mu.Unlock()
}

func (c *client) closeLocked() {
	c.closed = true
	c.conn.SetReadDeadline(time.Now())
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Hub is the room-scoped fan-out layer: every live socket of a session
// sits in that session's room once its join command succeeds.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*client
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*client)}
}

// JoinRoom puts a socket into a session's room
func (h *Hub) JoinRoom(c *client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[code]
	if room == nil {
		room = make(map[string]*client)
		h.rooms[code] = room
	}
	room[c.id] = c
}

// Leave removes a socket from its room, if it ever joined one
func (h *Hub) Leave(c *client) {
	code, _, _ := c.binding()
	if code == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room := h.rooms[code]; room != nil {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, code)
		}
	}
}

// room snapshots a session's sockets
func (h *Hub) room(code string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[code]
	out := make([]*client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// RoomSize counts a session's live sockets
func (h *Hub) RoomSize(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Dispatch routes a batch of directed events to their audiences. Each
// event is marshaled once and the frame shared across sockets.
func (h *Hub) Dispatch(code string, events []protocol.Directed) {
	if len(events) == 0 {
		return
	}
	clients := h.room(code)
	for _, d := range events {
		frame, err := d.Event.Marshal()
		if err != nil {
			logging.Error("failed to marshal event", map[string]interface{}{
				"session_code": code,
				"event":        string(d.Event.Type),
				"error":        err.Error(),
			})
			continue
		}
		for _, c := range clients {
			_, role, playerID := c.binding()
			if !targeted(d, role, playerID) {
				continue
			}
			c.enqueue(d.Event.Type, frame)
		}
	}
}

func targeted(d protocol.Directed, role types.Role, playerID string) bool {
	switch d.Target {
	case protocol.TargetAll:
		return true
	case protocol.TargetHost:
		return role == types.RoleHost
	case protocol.TargetPlayers:
		return role != types.RoleHost
	case protocol.TargetDisplays:
		return role == types.RoleDisplay
	case protocol.TargetPlayer:
		return d.PlayerID != "" && playerID == d.PlayerID
	}
	return false
}

// HostClients returns the host sockets of a session. There should be at
// most one; a fresh host join supersedes the old socket.
func (h *Hub) HostClients(code string) []*client {
	var out []*client
	for _, c := range h.room(code) {
		if _, role, _ := c.binding(); role == types.RoleHost {
			out = append(out, c)
		}
	}
	return out
}

// PlayerClients returns the sockets bound to one player
func (h *Hub) PlayerClients(code, playerID string) []*client {
	var out []*client
	for _, c := range h.room(code) {
		if _, _, pid := c.binding(); pid == playerID {
			out = append(out, c)
		}
	}
	return out
}

// CloseRoom closes every socket of a session after their queues drain
func (h *Hub) CloseRoom(code string) {
	for _, c := range h.room(code) {
		c.close()
	}
}
