// Package reload fans typed messages out to connected hot-reload clients.
//
// The Hub owns the client set. Connect and disconnect are the only mutation
// points; a client whose delivery fails is dropped and the broadcast goes on
// to the remaining clients.
package reload

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/event"
)

// MessageType names the payload carried by a Message.
type MessageType string

const (
	TypeReload  MessageType = "reload"
	TypeBuild   MessageType = "build"
	TypeLog     MessageType = "log"
	TypeMetrics MessageType = "metrics"
	TypeError   MessageType = "error"
)

// Action tells a client how to apply a reload.
type Action string

const (
	ActionReload Action = "reload"
	ActionUpdate Action = "update"
)

// Message is the envelope sent to every client.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// ReloadPayload is the data of a reload message.
type ReloadPayload struct {
	Action    Action   `json:"action"`
	Files     []string `json:"files"`
	Timestamp int64    `json:"timestamp"`
}

// Client is a connected receiver of broadcast messages.
type Client interface {
	// ID identifies the client within a Hub.
	ID() string

	// Send delivers one encoded message. Implementations serialize writes.
	Send(data []byte) error

	// Close releases the connection.
	Close() error
}

// Hub is the set of connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]Client
	enabled bool

	// sendMu serializes broadcasts so every client sees messages in
	// emission order.
	sendMu sync.Mutex

	logger *slog.Logger
	now    func() time.Time

	// OnReload is emitted for every Reload and Update while enabled.
	OnReload event.Emitter[ReloadPayload]

	// OnClientChange is emitted with the client count after a connect or
	// disconnect.
	OnClientChange event.Emitter[int]
}

// NewHub creates a disabled Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]Client),
		logger:  slog.Default().With("component", "reload"),
		now:     time.Now,
	}
}

// SetLogger sets the logger used for delivery failures.
func (h *Hub) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

// Enable turns broadcasting on.
func (h *Hub) Enable() {
	h.mu.Lock()
	h.enabled = true
	h.mu.Unlock()
}

// Disable turns broadcasting off and drops every client.
func (h *Hub) Disable() {
	h.mu.Lock()
	h.enabled = false
	clients := h.clients
	h.clients = make(map[string]Client)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	if len(clients) > 0 {
		h.OnClientChange.Emit(0)
	}
}

// Enabled reports whether broadcasting is on.
func (h *Hub) Enabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enabled
}

// AddClient registers c. A client with the same ID replaces the previous one.
func (h *Hub) AddClient(c Client) {
	h.mu.Lock()
	prev, replaced := h.clients[c.ID()]
	h.clients[c.ID()] = c
	n := len(h.clients)
	h.mu.Unlock()

	if replaced && prev != c {
		_ = prev.Close()
	}
	h.OnClientChange.Emit(n)
}

// RemoveClient unregisters c. Unknown clients are ignored.
func (h *Hub) RemoveClient(c Client) {
	if !h.remove(c) {
		return
	}
	_ = c.Close()
}

func (h *Hub) remove(c Client) bool {
	h.mu.Lock()
	cur, ok := h.clients[c.ID()]
	if !ok || cur != c {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c.ID())
	n := len(h.clients)
	h.mu.Unlock()

	h.OnClientChange.Emit(n)
	return true
}

// ConnectedClients returns the number of registered clients.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Reload tells clients to reload the given files. No-op while disabled.
func (h *Hub) Reload(files []string) {
	h.notify(ActionReload, files)
}

// Update tells clients to apply an in-place update of the given files.
// No-op while disabled.
func (h *Hub) Update(files []string) {
	h.notify(ActionUpdate, files)
}

func (h *Hub) notify(action Action, files []string) {
	if !h.Enabled() {
		return
	}
	if files == nil {
		files = []string{}
	}
	payload := ReloadPayload{
		Action:    action,
		Files:     append([]string(nil), files...),
		Timestamp: h.now().UnixMilli(),
	}
	h.Broadcast(Message{Type: TypeReload, Data: payload})
	h.OnReload.Emit(payload)
}

// Broadcast delivers msg to every client and returns how many received it.
// Clients that fail delivery are removed. No-op while disabled.
func (h *Hub) Broadcast(msg Message) int {
	if !h.Enabled() {
		return 0
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log().Error("encode broadcast", "type", msg.Type, "error", err)
		return 0
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	delivered := 0
	for _, c := range h.snapshot() {
		if err := c.Send(data); err != nil {
			h.log().Debug("dropping client",
				"client", c.ID(),
				"error", errors.New("E243").Wrap(err).Error())
			h.RemoveClient(c)
			continue
		}
		delivered++
	}
	return delivered
}

// Close drops every client without changing the enabled flag.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]Client)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
}

func (h *Hub) snapshot() []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (h *Hub) log() *slog.Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}
