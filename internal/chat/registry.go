package chat

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/andy6609/chat-relay/internal/audit"
	"github.com/samber/lo"
)

// Peer is anything the registry can deliver to.
type Peer interface {
	ID() string
	Send(m Message) error
}

// Registry tracks authenticated sessions by username and fans messages out
// to them. It does not own connections.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	audit  audit.Sink
	logger *slog.Logger
}

func NewRegistry(sink audit.Sink, logger *slog.Logger) *Registry {
	if sink == nil {
		sink = audit.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		peers:  make(map[string]Peer),
		audit:  sink,
		logger: logger,
	}
}

// Register adds p under username. The existence check and the insert happen
// under one lock, so two handshakes racing for the same name cannot both win.
func (r *Registry) Register(username string, p Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[username]; exists {
		return ErrUsernameTaken
	}
	r.peers[username] = p
	OnlineSessions.Set(float64(len(r.peers)))

	r.logger.Info("user registered", "username", username, "session", p.ID())
	return nil
}

// Deregister removes username if present and reports whether it did.
func (r *Registry) Deregister(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[username]; !ok {
		return false
	}
	delete(r.peers, username)
	OnlineSessions.Set(float64(len(r.peers)))
	return true
}

// DeregisterPeer removes username only while it still maps to p, so a
// session can never evict another session that holds the same name.
func (r *Registry) DeregisterPeer(username string, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.peers[username]
	if !ok || cur.ID() != p.ID() {
		return false
	}
	delete(r.peers, username)
	OnlineSessions.Set(float64(len(r.peers)))
	return true
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[username]
	return ok
}

// OnlineUsernames returns a sorted point-in-time copy.
func (r *Registry) OnlineUsernames() []string {
	r.mu.RLock()
	names := lo.Keys(r.peers)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// BroadcastToAll sends m to every peer registered at the time of the call.
// A failing peer is audited and skipped.
func (r *Registry) BroadcastToAll(m Message) {
	for username, p := range r.snapshot() {
		r.deliver(username, p, m)
	}
}

// DeliverTo sends m to username if it is online and reports whether it was.
func (r *Registry) DeliverTo(username string, m Message) bool {
	r.mu.RLock()
	p, ok := r.peers[username]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	r.deliver(username, p, m)
	return true
}

// Clear empties the registry and returns the peers it held.
func (r *Registry) Clear() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := lo.Values(r.peers)
	r.peers = make(map[string]Peer)
	OnlineSessions.Set(0)
	return peers
}

func (r *Registry) snapshot() map[string]Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Peer, len(r.peers))
	for k, v := range r.peers {
		out[k] = v
	}
	return out
}

func (r *Registry) deliver(username string, p Peer, m Message) {
	if err := p.Send(m); err != nil {
		DeliveryFailures.Inc()
		r.logger.Warn("delivery failed", "username", username, "kind", m.Kind(), "error", err)
		r.audit.Record(fmt.Sprintf("Error sending message to %s: %v", username, err))
	}
}
