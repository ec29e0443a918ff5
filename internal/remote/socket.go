package remote

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 1 << 16
)

// Message is sent to websocket clients. Type is "state" or "error".
type Message struct {
	Type  string    `json:"type"`
	State *Snapshot `json:"state,omitempty"`
	Error string    `json:"error,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if s.origins == nil {
				return strings.EqualFold(u.Host, r.Host)
			}
			return s.origins[origin] || s.origins[u.Host]
		},
	}
}

// handleSocket pushes every snapshot to the client and applies the commands
// it sends. Command failures are reported as error messages.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	client := uuid.NewString()
	logger := s.logger.With("client", client[:8])
	logger.Info("client connected", "addr", r.RemoteAddr)
	defer logger.Info("client disconnected")

	updates, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	errs := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readCommands(conn, errs, logger)
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var msg Message
		select {
		case p, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			snap := snapshot(s.ctl, p)
			msg = Message{Type: "state", State: &snap}
		case e := <-errs:
			msg = Message{Type: "error", Error: e}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		case <-done:
			return
		case <-r.Context().Done():
			return
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("write failed", "err", err)
			return
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, errs chan<- string, logger *log.Logger) {
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	report := func(msg string) {
		select {
		case errs <- msg:
		default:
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("read failed", "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			report("invalid command: " + err.Error())
			continue
		}
		if err := cmd.Apply(s.ctl); err != nil {
			report(err.Error())
		}
	}
}
