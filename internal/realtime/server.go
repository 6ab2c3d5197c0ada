package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"telgen/internal/activity"
	"telgen/internal/protocol"
	"telgen/internal/session"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBufCap    = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow localhost origins for dev.
	},
}

// Feed is the source of activity records. *activity.Logger implements it.
type Feed interface {
	Subscribe() (string, <-chan activity.Record, []activity.Record)
	Unsubscribe(id string)
	Recent(limit int, typ activity.Type) []activity.Record
}

// InfoSource describes the running session. *session.Session implements it.
type InfoSource interface {
	Info() session.Info
}

// Server streams activity records to WebSocket clients and answers
// read-only REST queries about the session.
type Server struct {
	feed Feed
	info InfoSource
	log  *zap.Logger

	clients   map[*client]bool
	clientsMu sync.RWMutex
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	subID  string
	server *Server
}

// New creates a new realtime server. A nil logger disables diagnostics.
func New(feed Feed, info InfoSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		feed:    feed,
		info:    info,
		log:     log.Named("realtime"),
		clients: make(map[*client]bool),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	// WebSocket endpoint.
	router.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	router.HandleFunc("/records", s.handleListRecords).Methods(http.MethodGet)
	router.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)

	return corsMiddleware(router)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Subscribing returns the history atomically with registration, so no
	// record falls between the replay and the live stream.
	subID, ch, history := s.feed.Subscribe()

	c := &client{
		conn:   conn,
		send:   make(chan []byte, len(history)+sendBufCap),
		done:   make(chan struct{}),
		subID:  subID,
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	s.sendInfo(c)
	for _, rec := range history {
		s.sendRecord(c, rec)
	}

	go c.forward(ch)
	go c.writePump()
	go c.readPump()
}

// forward relays live records until the subscription ends.
func (c *client) forward(ch <-chan activity.Record) {
	for rec := range ch {
		c.server.sendRecord(c, rec)
	}
}

// enqueue hands data to the write pump without blocking. Messages for a
// slow or departed client are dropped.
func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		// Client buffer full, skip.
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	c.once.Do(func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()

		s.feed.Unsubscribe(c.subID)
		close(c.done)
	})
}

// Shutdown disconnects every client.
func (s *Server) Shutdown() {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		s.removeClient(c)
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeHistoryRequest:
		s.handleWSHistory(c, msg)
	case protocol.TypeInfoRequest:
		s.sendInfo(c)
	}
}

func (s *Server) handleWSHistory(c *client, msg *protocol.Message) {
	req, err := protocol.ParseHistoryRequest(msg.Payload)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	recs := s.feed.Recent(req.Limit, activity.Type(req.ActivityType))
	resp, err := protocol.NewHistoryMessage(req.ActivityType, recs)
	if err != nil {
		s.sendError(c, protocol.ErrInternal, err.Error())
		return
	}
	s.send(c, resp)
}

func (s *Server) sendInfo(c *client) {
	msg, err := protocol.NewMessage(protocol.TypeSessionInfo, infoPayload(s.info.Info()))
	if err != nil {
		return
	}
	s.send(c, msg)
}

func (s *Server) sendRecord(c *client, rec activity.Record) {
	msg, err := protocol.NewRecordMessage(rec)
	if err != nil {
		s.log.Warn("encode record", zap.String("record", rec.ID), zap.Error(err))
		return
	}
	s.send(c, msg)
}

func (s *Server) sendError(c *client, code, message string) {
	msg, _ := protocol.NewErrorMessage(code, message)
	s.send(c, msg)
}

func (s *Server) send(c *client, msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func infoPayload(info session.Info) protocol.SessionInfoPayload {
	return protocol.SessionInfoPayload{
		ID:        info.ID,
		State:     string(info.State),
		PID:       info.PID,
		Username:  info.Username,
		Process:   info.Process,
		LogPath:   info.LogPath,
		StartedAt: info.StartedAt.Format(time.RFC3339Nano),
		Records:   info.Records,
	}
}
