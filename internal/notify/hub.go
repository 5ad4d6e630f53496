// Package notify fans panel notifications out to connected browsers.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub keeps one buffered channel per connected client and broadcasts
// messages to all of them. A client whose buffer is full misses the message.
type Hub struct {
	log     zerolog.Logger
	onCount func(int)

	mu      sync.RWMutex
	clients map[string]chan Message

	register   chan registration
	unregister chan unregistration
	broadcast  chan Message
	shutdown   chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
}

type registration struct {
	id   string
	ch   chan Message
	done chan struct{}
}

type unregistration struct {
	id   string
	done chan struct{}
}

// NewHub creates and starts a hub. onCount, if not nil, is called with the
// number of clients whenever it changes.
func NewHub(log zerolog.Logger, onCount func(int)) *Hub {
	h := &Hub{
		log:        log.With().Str("component", "notify").Logger(),
		onCount:    onCount,
		clients:    make(map[string]chan Message),
		register:   make(chan registration),
		unregister: make(chan unregistration),
		broadcast:  make(chan Message, 100),
		shutdown:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)

	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.id] = reg.ch
			n := len(h.clients)
			h.mu.Unlock()
			h.counted(n)
			close(reg.done)

		case unreg := <-h.unregister:
			h.mu.Lock()
			ch, ok := h.clients[unreg.id]
			if ok {
				close(ch)
				delete(h.clients, unreg.id)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if ok {
				h.counted(n)
			}
			close(unreg.done)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for id, ch := range h.clients {
				select {
				case ch <- msg:
				default:
					h.log.Warn().Str("client", id).Str("type", msg.Type).Msg("Client buffer full, dropping message")
				}
			}
			h.mu.RUnlock()

		case <-h.shutdown:
			h.mu.Lock()
			for id, ch := range h.clients {
				close(ch)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.counted(0)
			return
		}
	}
}

func (h *Hub) counted(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Register adds a client channel and returns once the client is counted.
// It returns false once the hub is stopped.
func (h *Hub) Register(id string, ch chan Message) bool {
	reg := registration{id: id, ch: ch, done: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.shutdown:
		return false
	}
	<-reg.done
	return true
}

// Unregister removes a client and closes its channel
func (h *Hub) Unregister(id string) {
	unreg := unregistration{id: id, done: make(chan struct{})}
	select {
	case h.unregister <- unreg:
	case <-h.shutdown:
		return
	}
	<-unreg.done
}

// Broadcast queues msg for every client without blocking
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("type", msg.Type).Msg("Broadcast queue full, dropping message")
	}
}

// Count returns the number of registered clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes all client channels and waits for the hub loop to exit
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
	<-h.stopped
}
