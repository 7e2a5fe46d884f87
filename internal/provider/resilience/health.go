package resilience

import (
	"sync"

	"github.com/sony/gobreaker/v2"
)

// Health is a point-in-time view of one provider's circuit breaker.
type Health struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
}

// Healthy reports whether the circuit is closed.
func (h Health) Healthy() bool {
	return h.State == gobreaker.StateClosed.String()
}

// Registry tracks provider clients for operational health reporting.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds a client under its configured name, replacing any previous
// registration.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// HealthAll returns the health of every registered provider.
func (r *Registry) HealthAll() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]Health, 0, len(r.clients))
	for name, c := range r.clients {
		counts := c.Counts()
		health = append(health, Health{
			Name:     name,
			State:    c.State().String(),
			Requests: counts.Requests,
			Failures: counts.TotalFailures,
		})
	}
	return health
}
