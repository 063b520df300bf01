package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"membership-billing/internal/domain"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/infra/sched"
)

var (
	streamPingInterval = 20 * time.Second
	streamWriteWait    = 5 * time.Second
	streamPongWait     = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // callers authenticate with a bearer token, not cookies
	},
}

type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// streamConn serializes writes; gorilla connections allow one concurrent writer.
type streamConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *streamConn) send(msg streamMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *streamConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
}

// handleMembershipStream upgrades to a websocket that pushes a fresh
// membership snapshot whenever the user's rows change, on a timer, and on
// "focus" or "refresh" messages from the client. The connection owns one
// MembershipSync and stops it before closing.
func (s *Server) handleMembershipStream(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		s.fail(w, r, domain.ErrAuthRequired)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		return
	}
	sc := &streamConn{conn: conn}
	l := logging.With(r.Context(), s.log)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	refresh := func(ctx context.Context) error {
		snap, err := s.deps.Membership.Snapshot(ctx, p.userID)
		if err != nil {
			_ = sc.send(streamMessage{Type: "error", Data: errorDetail{Code: "INTERNAL", Message: s.t("error.internal")}})
			return err
		}
		return sc.send(streamMessage{Type: "snapshot", Data: toMembershipDTO(snap)})
	}

	ms := sched.NewMembershipSync(p.userID, s.deps.Feed, s.deps.SyncInterval, refresh, l)
	if err := ms.Start(ctx); err != nil {
		l.Error().Err(err).Msg("membership sync start failed")
		_ = conn.Close()
		return
	}
	l.Info().Msg("membership stream opened")

	done := make(chan struct{})
	go s.streamKeepalive(sc, done)

	s.streamReadLoop(conn, ms)

	close(done)
	ms.Stop()
	_ = conn.Close()
	l.Info().Msg("membership stream closed")
}

func (s *Server) streamReadLoop(conn *websocket.Conn, ms *sched.MembershipSync) {
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	conn.SetReadLimit(4096)

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("membership stream read error")
			}
			return
		}
		var msg streamMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "focus":
			ms.Focus()
		case "refresh":
			ms.Trigger()
		}
	}
}

func (s *Server) streamKeepalive(sc *streamConn, done <-chan struct{}) {
	t := time.NewTicker(streamPingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := sc.ping(); err != nil {
				// unblocks the read loop
				_ = sc.conn.Close()
				return
			}
		}
	}
}
