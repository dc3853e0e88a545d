package market

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CurveBank/internal/event"
	"CurveBank/internal/observability"
	"CurveBank/internal/revert"
)

// Registry holds every live market instance. Creation and lookup are
// concurrent; the per-instance mutex takes over from there.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market

	clock     Clock
	persistCh chan<- *event.Envelope
	publishCh chan<- *event.Envelope
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewRegistry(
	clock Clock,
	persistCh, publishCh chan<- *event.Envelope,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Registry {
	return &Registry{
		markets:   make(map[string]*Market),
		clock:     clock,
		persistCh: persistCh,
		publishCh: publishCh,
		metrics:   metrics,
		log:       logger,
	}
}

// Create builds a new instance under a fresh UUID and registers it.
func (r *Registry) Create(cfg Config) (*Market, error) {
	id := uuid.New().String()
	m, err := NewMarket(id, cfg, r.clock, r.persistCh, r.publishCh, r.metrics, r.log)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.markets[id] = m
	r.mu.Unlock()
	return m, nil
}

func (r *Registry) Get(id string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, revert.ErrUnknownMarket
	}
	return m, nil
}

// List returns all instance IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
