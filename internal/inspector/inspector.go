// Package inspector implements the dev-only "verbose-disasm" live stream
// (spec.md §6.3): when enabled, internal/compiler pushes each instruction
// as C9 packs it to every connected websocket client, so a developer can
// watch a shader compile instruction-by-instruction instead of reading a
// static dump after the fact.
//
// Grounded on the teacher's internal/network/websocket.go: Hub mirrors
// WebSocketServer's upgrade-handler-plus-client-map shape, generalized
// from a bidirectional chat-style connection (read loop feeding a
// per-connection channel) to a fan-out-only broadcast, since a verbose-
// disasm client only ever receives.
package inspector

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is one instruction pushed to every connected client.
type Event struct {
	ShaderID   string `json:"shader_id"`
	Seq        int    `json:"seq"`
	BlockIndex int    `json:"block_index"`
	Text       string `json:"text"`
}

// Hub accepts websocket connections and broadcasts Events to all of them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*websocket.Conn
	nextID  int

	Server *http.Server
}

// NewHub returns a Hub with its HTTP server bound to addr but not yet
// listening; call ListenAndServe to start it.
func NewHub(addr string) *Hub {
	h := &Hub{
		clients: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/verbose-disasm", h.handle)
	h.Server = &http.Server{Addr: addr, Handler: mux}
	return h
}

// ListenAndServe starts the hub's HTTP server in the background. Callers
// that want to block until it exits should call h.Server.ListenAndServe
// directly instead.
func (h *Hub) ListenAndServe() {
	go h.Server.ListenAndServe()
}

func (h *Hub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.nextID++
	id := fmt.Sprintf("inspector-%d", h.nextID)
	h.clients[id] = conn
	h.mu.Unlock()

	// Discard anything the client sends; this stream is broadcast-only.
	// Reading to completion is what detects the connection closing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.clients, id)
				h.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Broadcast sends ev as JSON text to every currently connected client,
// dropping (and disconnecting) any client whose write fails rather than
// letting one slow consumer back-pressure the whole compile.
func (h *Hub) Broadcast(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := make(map[string]*websocket.Conn, len(h.clients))
	for id, c := range h.clients {
		conns[id] = c
	}
	h.mu.RUnlock()

	for id, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			c.Close()
		}
	}
	return nil
}

// Close shuts down every connection and the HTTP server.
func (h *Hub) Close() error {
	h.mu.Lock()
	for id, c := range h.clients {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
		delete(h.clients, id)
	}
	h.mu.Unlock()
	return h.Server.Close()
}
