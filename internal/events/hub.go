package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// ──────────────────── WebSocket Hub ────────────────────

// Hub fans pipeline events out to connected websocket clients: fetch
// progress, job lifecycle, publish results. Slow clients drop messages
// rather than stalling the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool

	jobsMu     sync.RWMutex
	activeJobs map[string]json.RawMessage // job_id → last job:update payload
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		activeJobs: make(map[string]json.RawMessage),
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return
	}

	// Keep a snapshot of running jobs so new clients sync to current state.
	if event == "job:update" {
		h.trackJob(data, msg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) trackJob(data interface{}, raw []byte) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	jobID, _ := m["job_id"].(string)
	status, _ := m["status"].(string)
	if jobID == "" {
		return
	}

	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	if status == "complete" || status == "failed" {
		delete(h.activeJobs, jobID)
	} else {
		h.activeJobs[jobID] = json.RawMessage(raw)
	}
}

func (h *Hub) sendActiveJobs(c *client) {
	h.jobsMu.RLock()
	defer h.jobsMu.RUnlock()
	for _, msg := range h.activeJobs {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

// ServeHTTP upgrades the connection and pumps hub broadcasts to the client
// until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Events: websocket accept: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.addClient(c)
	h.sendActiveJobs(c)
	log.Printf("Events: client connected (%d total)", h.ClientCount())

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range c.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop: keeps the connection alive, handles pings.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	h.removeClient(c)
	log.Printf("Events: client disconnected (%d total)", h.ClientCount())
}
