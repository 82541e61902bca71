package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/monitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Progress event types
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventError     = "error"
)

// ProgressEvent is one analysis update pushed to dashboard clients.
type ProgressEvent struct {
	SurveyID  string              `json:"survey_id"`
	Type      string              `json:"type"`
	Status    models.SurveyStatus `json:"status,omitempty"`
	Progress  *models.Progress    `json:"progress,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// ProgressHub manages WebSocket clients and broadcasts progress events.
type ProgressHub struct {
	clients    map[*wsClient]bool
	broadcast  chan ProgressEvent
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger
}

type wsClient struct {
	hub  *ProgressHub
	conn *websocket.Conn
	send chan []byte
}

// NewProgressHub creates a new WebSocket hub.
func NewProgressHub(logger *common.Logger) *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan ProgressEvent, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Should be called as a goroutine.
func (h *ProgressHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("WebSocket client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal progress event")
				continue
			}

			h.mu.RLock()
			var slow []*wsClient
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					if _, ok := h.clients[c]; ok {
						delete(h.clients, c)
						close(c.send)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals the hub's event loop to exit.
func (h *ProgressHub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast queues an event for every connected client.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("survey_id", event.SurveyID).Msg("WebSocket broadcast channel full, dropping event")
	}
}

// Observer returns a monitor observer that forwards one survey's updates to
// the hub.
func (h *ProgressHub) Observer(surveyID string) monitor.Observer {
	return monitor.ObserverFuncs{
		Progress: func(p models.Progress) {
			h.Broadcast(ProgressEvent{SurveyID: surveyID, Type: EventProgress, Status: models.StatusProcessing, Progress: &p, Message: p.Message})
		},
		Completed: func(s *models.Survey, _ *models.Analysis) {
			h.Broadcast(ProgressEvent{SurveyID: surveyID, Type: EventCompleted, Status: models.StatusCompleted, Message: surveyTitle(s)})
		},
		Failed: func(s *models.Survey) {
			h.Broadcast(ProgressEvent{SurveyID: surveyID, Type: EventFailed, Status: models.StatusFailed, Message: surveyTitle(s)})
		},
		Error: func(err error) {
			h.Broadcast(ProgressEvent{SurveyID: surveyID, Type: EventError, Message: err.Error()})
		},
	}
}

func surveyTitle(s *models.Survey) string {
	if s == nil {
		return ""
	}
	return s.Title
}

// ServeWS upgrades an HTTP connection to WebSocket and registers the client.
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump sends messages from the send channel to the WebSocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so close frames and pongs are seen.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
