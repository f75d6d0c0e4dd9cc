package relay

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/stashgrid/relay/internal/protocol"
)

// defaultSendBufferSize bounds how far a slow consumer may fall behind
// before the relay drops it.
const defaultSendBufferSize = 32

// session is one live websocket connection. The read pump feeds the
// server's event loop; the write pump drains the send channel. Only the
// event loop pushes to send and only the event loop closes it.
type session struct {
	id   string
	conn *websocket.Conn
	send chan *protocol.Envelope
	srv  *Server
}

func newSession(id string, conn *websocket.Conn, srv *Server) *session {
	return &session{
		id:   id,
		conn: conn,
		send: make(chan *protocol.Envelope, srv.sendBuf),
		srv:  srv,
	}
}

// push enqueues an envelope without blocking the event loop. A false
// return means the session's buffer is full and it should be dropped.
func (s *session) push(env *protocol.Envelope) bool {
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

func (s *session) readPump() {
	defer s.srv.dropSession(s)

	s.conn.SetReadLimit(protocol.MaxMessageSize)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.srv.logger.Warn("Discarding malformed envelope", "conn", s.id, "error", err)
			continue
		}

		select {
		case s.srv.inbound <- inboundEnvelope{sess: s, env: &env}:
		case <-s.srv.done:
			return
		}
	}
}

func (s *session) writePump() {
	defer func() { _ = s.conn.Close() }()

	for env := range s.send {
		if err := s.conn.WriteJSON(env); err != nil {
			s.srv.logger.Debug("Write failed", "conn", s.id, "error", err)
			return
		}
	}
}
