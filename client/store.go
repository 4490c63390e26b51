package client

import (
	"sync"
	"time"
)

// Store is the authoritative local cache of territories and the single
// point of mutation. Push events enter through Apply; the mutation
// coordinator uses the direct upsert/remove operations. Reads hand out
// clones, so callers can never corrupt cached state.
//
// Events are applied strictly in arrival order with no version checks:
// the push protocol carries no per-territory sequence number, so the last
// applied write wins. Known limitation pending backend coordination.
type Store struct {
	mu          sync.RWMutex
	territories map[string]Territory

	now     func() time.Time
	metrics *Collector
}

// NewStore creates an empty territory cache.
func NewStore(metrics *Collector) *Store {
	return &Store{
		territories: make(map[string]Territory),
		now:         time.Now,
		metrics:     metrics,
	}
}

// merge is the pure per-territory transition: given the cached value (if
// any) and an inbound event, it yields the replacement value. The second
// return is false when the event type is unknown and state is untouched.
// It reads no clocks and touches no maps, so it is testable in isolation.
func merge(prev Territory, exists bool, ev TerritoryEvent, now time.Time) (Territory, bool) {
	switch ev.Type {
	case EventClaimed:
		next := ev.Territory.Clone()
		next.Status = StatusClaimed
		return next, true

	case EventAttacked, EventContested:
		// Contest events keep the current owner and bump the counter.
		// A contested event may introduce a previously unseen territory.
		next := ev.Territory.Clone()
		if exists {
			next.Owner = prev.Owner
			next.ContestCount = prev.ContestCount
		}
		next.Status = StatusContested
		next.ContestCount++
		next.LastActivity = now
		return next, true

	case EventLost, EventOwnershipChanged, EventConflictResolved:
		// The authority already resolved ownership; take the snapshot verbatim.
		return ev.Territory.Clone(), true

	default:
		return prev, false
	}
}

// Apply is the single entry point for authoritative push events. Unknown
// event types are a no-op on state (forward compatibility); the dispatcher
// still re-emits them externally.
func (s *Store) Apply(ev TerritoryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.territories[ev.Territory.ID]
	next, ok := merge(prev, exists, ev, s.now())
	if !ok {
		Log.Debugf("event type %q unknown, state untouched", ev.Type)
		return
	}
	s.territories[next.ID] = next
	s.metrics.eventApplied(string(ev.Type))
	s.metrics.territoryCount(len(s.territories))
}

// AddTerritory inserts or replaces a territory directly. Used by the
// mutation coordinator for speculative writes.
func (s *Store) AddTerritory(t Territory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.territories[t.ID] = t.Clone()
	s.metrics.territoryCount(len(s.territories))
}

// UpdateTerritory upserts by ID, same as AddTerritory; kept as a separate
// operation so call sites read as intent.
func (s *Store) UpdateTerritory(t Territory) {
	s.AddTerritory(t)
}

// RemoveTerritory deletes a territory from the cache. Missing IDs are a
// no-op.
func (s *Store) RemoveTerritory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.territories, id)
	s.metrics.territoryCount(len(s.territories))
}

// Get returns a clone of the territory with the given ID.
func (s *Store) Get(id string) (Territory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.territories[id]
	if !ok {
		return Territory{}, false
	}
	return t.Clone(), true
}

// Snapshot returns a clone of every cached territory, keyed by ID.
func (s *Store) Snapshot() map[string]Territory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Territory, len(s.territories))
	for id, t := range s.territories {
		out[id] = t.Clone()
	}
	return out
}

// Len reports the number of cached territories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.territories)
}
