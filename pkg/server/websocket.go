package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/reactive/pkg/reactive"
)

// handleWebSocket upgrades the connection, sends the current sheet, then
// reads commands until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.running() {
		s.writeError(w, ErrNotStarted)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	c, ok := s.hub.register(conn)
	if !ok {
		conn.Close()
		return
	}
	go c.writeLoop(s.config.PingInterval, s.config.MessageWriteTimeout)

	// The initial state is queued on the runtime goroutine so it is ordered
	// before any update published after it.
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CallTimeout)
	err = s.rt.Call(ctx, func() error {
		for _, name := range s.sheet.Names() {
			v, err := s.sheet.Get(name)
			if err != nil {
				continue
			}
			c.queue(UpdateMessage{Type: msgUpdate, Name: name, Value: encodeValue(v)})
		}
		return nil
	})
	cancel()
	if err != nil {
		s.logger.Warn("websocket initial state failed", "client", c.id, "error", err)
		s.hub.unregister(c)
		return
	}

	s.logger.Debug("websocket client connected", "client", c.id, "clients", s.hub.Len())
	s.readLoop(c)
	s.logger.Debug("websocket client disconnected", "client", c.id, "clients", s.hub.Len())
}

// readLoop decodes commands from c until the connection fails.
func (s *Server) readLoop(c *client) {
	defer s.hub.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("websocket read error", "client", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.queue(ErrorMessage{Type: msgError, Message: "invalid command: " + err.Error()})
			continue
		}
		s.handleCommand(c, cmd)
	}
}

// handleCommand applies one client command. Results reach every client
// through the watch; only failures are answered directly.
func (s *Server) handleCommand(c *client, cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CallTimeout)
	defer cancel()

	var err error
	switch cmd.Op {
	case opSet:
		err = s.mutate(ctx, func() error {
			return s.sheet.Set(cmd.Name, cmd.Raw)
		})
	case opRemove:
		err = s.mutate(ctx, func() error {
			return s.sheet.Remove(cmd.Name)
		})
	default:
		c.queue(ErrorMessage{Type: msgError, Op: cmd.Op, Message: "unknown op"})
		return
	}
	if err != nil {
		c.queue(ErrorMessage{
			Type:    msgError,
			Op:      cmd.Op,
			Name:    cmd.Name,
			Message: err.Error(),
			Code:    reactive.CodeOf(err),
		})
	}
}
