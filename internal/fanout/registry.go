package fanout

import (
	"sync"

	"github.com/rs/zerolog"
)

// Conn is a live client connection the registry can push payloads to.
// Send must not block: implementations enqueue and report failure when the
// connection is closed or saturated.
type Conn interface {
	ID() string
	Send(payload []byte) error
}

// Registry tracks this instance's live connections and their subscribed
// pairs. Lookups are pair -> interested connections; subscription updates
// replace the whole set.
type Registry struct {
	instanceName string

	mu    sync.RWMutex
	conns map[string]Conn
	subs  map[string]map[string]struct{}

	logger zerolog.Logger
}

// NewRegistry constructs a Registry for the named instance.
func NewRegistry(instanceName string, logger zerolog.Logger) *Registry {
	return &Registry{
		instanceName: instanceName,
		conns:        make(map[string]Conn),
		subs:         make(map[string]map[string]struct{}),
		logger:       logger.With().Str("component", "session_registry").Logger(),
	}
}

// Register adds a connection and sends the one-shot instance-identity
// handshake so the client knows which node it landed on.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()

	r.logger.Info().Str("conn_id", conn.ID()).Msg("connection registered")
	if err := conn.Send([]byte("Connection Instance: " + r.instanceName)); err != nil {
		r.logger.Warn().Err(err).Str("conn_id", conn.ID()).Msg("failed to send handshake message")
	}
}

// Unregister removes a connection and clears its subscriptions.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	delete(r.subs, id)
	r.mu.Unlock()

	r.logger.Info().Str("conn_id", id).Msg("connection removed")
}

// SetSubscriptions replaces the connection's whole subscribed-pair set.
func (r *Registry) SetSubscriptions(id string, pairs []string) {
	set := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		set[pair] = struct{}{}
	}

	r.mu.Lock()
	r.subs[id] = set
	r.mu.Unlock()

	r.logger.Info().Str("conn_id", id).Strs("pairs", pairs).Msg("subscription updated")
}

// InterestedIn returns a snapshot of the connections subscribed to pair,
// safe under concurrent register/unregister/broadcast.
func (r *Registry) InterestedIn(pair string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]Conn, 0)
	for id, conn := range r.conns {
		if _, ok := r.subs[id][pair]; ok {
			targets = append(targets, conn)
		}
	}
	return targets
}
