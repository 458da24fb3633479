package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/session"
)

// maxFrameSize bounds one inbound frame; answers are small
const maxFrameSize = 64 * 1024

// readIdleLimit is how long a socket may stay silent before the read
// loop gives up on it. Generous next to the 15s heartbeat interval; the
// sweeper degrades quality long before this trips.
const readIdleLimit = 75 * time.Second

// joinCommands are the frames a fresh socket may open with
var joinCommands = map[protocol.CommandType]bool{
	protocol.CmdJoinSession:        true,
	protocol.CmdJoinAsNew:          true,
	protocol.CmdRejoinAsExisting:   true,
	protocol.CmdPlayerRejoin:       true,
	protocol.CmdHostJoinSession:    true,
	protocol.CmdDisplayJoinSession: true,
}

// handleWebSocket upgrades the connection and runs the read loop. All
// writes happen on the client's writePump.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", map[string]interface{}{
			"remote": c.Request.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}

	cl := newClient(uuid.New().String(), conn, s.cfg)
	s.registry.Track(cl)
	go cl.writePump()
	s.readPump(cl)
}

// readPump consumes frames until the socket dies. The first frame must
// be a join-class command within the join deadline.
func (s *Server) readPump(cl *client) {
	defer func() {
		code, playerID := s.registry.Drop(cl.id)
		if code != "" && playerID != "" {
			s.supervisor.PostDisconnect(code, playerID)
		}
		s.hub.Leave(cl)
		cl.close()
		logging.LogSocketEvent("socket_closed", code, cl.id, nil)
	}()

	cl.conn.SetReadLimit(maxFrameSize)
	cl.conn.SetReadDeadline(time.Now().Add(s.cfg.JoinDeadline))

	strikes := 0
	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket read ended", map[string]interface{}{
					"socket_id": cl.id,
					"error":     err.Error(),
				})
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			strikes++
			if strikes >= s.cfg.MalformedLimit {
				cl.send(protocol.NewFatalError(protocol.ErrPayloadInvalid, "too many malformed frames", 0))
				cl.close()
				return
			}
			cl.send(protocol.NewError(protocol.ErrPayloadInvalid, "malformed frame", 0))
			continue
		}

		s.registry.Touch(cl.id)
		cl.conn.SetReadDeadline(time.Now().Add(readIdleLimit))
		s.route(cl, msg)
	}
}

// route hands one parsed frame to its handler. Join-class commands may
// arrive on an unbound socket; everything else needs a session binding.
func (s *Server) route(cl *client, msg *protocol.Message) {
	cmdType := protocol.CommandType(msg.Type)

	switch {
	case cmdType == protocol.CmdHeartbeat:
		// Touch already happened; nothing to answer
		return

	case cmdType == protocol.CmdPing:
		var p protocol.PingPayload
		json.Unmarshal(msg.Payload, &p)
		cl.send(protocol.NewEvent(protocol.EventPong, protocol.PongPayload{
			Nonce:      p.Nonce,
			ServerTime: time.Now().UTC(),
		}, 0))
		return

	case cmdType == protocol.CmdPlayerRejoin:
		s.redeemRejoin(cl, msg.Payload)
		return

	case joinCommands[cmdType]:
		code, ok := sessionCodeOf(msg.Payload)
		if !ok {
			cl.send(protocol.NewError(protocol.ErrPayloadInvalid, "join payload needs a session code", 0))
			return
		}
		if err := s.supervisor.Attach(cl, code, cmdType, msg.Payload); err != nil {
			e := session.AsError(err)
			cl.send(protocol.NewError(e.Code, e.Message, 0))
		}
		return

	default:
		if err := s.supervisor.Post(cl, cmdType, msg.Payload); err != nil {
			e := session.AsError(err)
			cl.send(protocol.NewError(e.Code, e.Message, 0))
		}
	}
}

// redeemRejoin consumes a single-use rejoin token and rebinds the socket
// to the player it was minted for
func (s *Server) redeemRejoin(cl *client, payload json.RawMessage) {
	var p protocol.PlayerRejoinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Token == "" {
		cl.send(protocol.NewError(protocol.ErrPayloadInvalid, "rejoin needs a token", 0))
		return
	}

	ticket, err := s.cache.ConsumeRejoinTicket(p.Token)
	if err != nil {
		cl.send(protocol.NewError(protocol.ErrRejoinTokenExpired, "token lookup failed", 0))
		return
	}
	if ticket == nil {
		cl.send(protocol.NewError(protocol.ErrRejoinTokenExpired, "token is expired or already used", 0))
		return
	}

	if err := s.supervisor.AttachRebind(cl, ticket.SessionCode, ticket.PlayerID); err != nil {
		e := session.AsError(err)
		cl.send(protocol.NewError(e.Code, e.Message, 0))
	}
}

// sessionCodeOf pulls the code field shared by all join payloads
func sessionCodeOf(payload json.RawMessage) (string, bool) {
	var p struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Code == "" {
		return "", false
	}
	return p.Code, true
}

// newUpgrader builds the gorilla upgrader with the configured origins
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		},
	}
}
