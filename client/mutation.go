package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mutation error classes. Callers match with errors.Is.
var (
	ErrMutationInFlight = errors.New("mutation already in flight")
	ErrMutationRejected = errors.New("mutation rejected by the authority")
	ErrMutationFailed   = errors.New("unknown error occurred")
)

// MutationStatus tracks a pending mutation's lifecycle.
type MutationStatus string

const (
	MutationPending    MutationStatus = "pending"
	MutationCommitted  MutationStatus = "committed"
	MutationRolledBack MutationStatus = "rolled_back"
)

// Aggregates a committed claim invalidates.
const (
	AggregateLeaderboard = "leaderboard"
	AggregateStatistics  = "statistics"
)

// FeedbackStage marks the defined user-feedback points of a mutation.
type FeedbackStage string

const (
	FeedbackIssued    FeedbackStage = "issued"
	FeedbackCommitted FeedbackStage = "committed"
	FeedbackFailed    FeedbackStage = "failed"
)

// Feedback is a user-facing progress signal; it never blocks the state
// transition it describes.
type Feedback struct {
	Stage      FeedbackStage
	Message    string
	MutationID string
}

// command packages a speculative store change with its exact inverse, so
// rollback is a data operation rather than ad hoc object reconstruction.
type command struct {
	apply  func()
	invert func()
}

// PendingMutation is one speculative edit awaiting the authority's verdict.
// It is created when the action is issued and discarded on commit or
// rollback.
type PendingMutation struct {
	ID     string
	Key    string // resource+action, used for duplicate suppression
	Status MutationStatus
	cmd    command
}

// Coordinator applies speculative local edits for user-initiated actions
// and reconciles them against the authority's responses. Exactly one
// snapshot/restore cycle runs per mutation, and concurrent submissions of
// the same logical action are rejected outright rather than left to
// UI-level debouncing.
type Coordinator struct {
	store   *Store
	gateway Gateway
	owner   string
	metrics *Collector

	onFeedback func(Feedback)
	onStale    func(aggregate string)

	mu       sync.Mutex
	inflight map[string]*PendingMutation
}

// NewCoordinator wires the coordinator to the store and gateway. The
// feedback and stale-aggregate callbacks are optional.
func NewCoordinator(store *Store, gateway Gateway, owner string, onFeedback func(Feedback), onStale func(string), metrics *Collector) *Coordinator {
	return &Coordinator{
		store:      store,
		gateway:    gateway,
		owner:      owner,
		metrics:    metrics,
		onFeedback: onFeedback,
		onStale:    onStale,
		inflight:   make(map[string]*PendingMutation),
	}
}

// ClaimTerritory turns a completed route into a territory claim: a
// speculative territory appears in the store immediately, the request goes
// to the authority, and the response either replaces the speculative entity
// or restores the exact pre-mutation state.
func (c *Coordinator) ClaimTerritory(ctx context.Context, route Route) (Territory, error) {
	key := "territory:claim:" + route.ID
	m := &PendingMutation{ID: uuid.NewString(), Key: key, Status: MutationPending}

	c.mu.Lock()
	if _, dup := c.inflight[key]; dup {
		c.mu.Unlock()
		c.metrics.mutationFinished("rejected")
		return Territory{}, fmt.Errorf("%s: %w", key, ErrMutationInFlight)
	}
	c.inflight[key] = m
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	ring := BoundaryRing(route.Coordinates)
	speculative := Territory{
		ID:           "pending-" + m.ID,
		Owner:        c.owner,
		Boundary:     ring,
		AreaM2:       RingArea(ring),
		Status:       StatusClaimed,
		LastActivity: time.Now(),
	}

	m.cmd = c.upsertCommand(speculative)
	m.cmd.apply()
	c.feedback(Feedback{Stage: FeedbackIssued, Message: "claiming territory...", MutationID: m.ID})

	resp, err := c.gateway.ClaimTerritoryFromRoute(ctx, route)
	if err != nil || resp == nil || !resp.Success || resp.Territory == nil {
		m.cmd.invert()
		m.Status = MutationRolledBack
		cause := classifyMutationError(resp, err)
		c.feedback(Feedback{Stage: FeedbackFailed, Message: cause.Error(), MutationID: m.ID})
		c.metrics.mutationFinished(string(MutationRolledBack))
		Log.Warnf("claim %s rolled back: %v", m.ID, cause)
		return Territory{}, cause
	}

	c.store.RemoveTerritory(speculative.ID)
	c.store.UpdateTerritory(*resp.Territory)
	m.Status = MutationCommitted
	c.staleAggregates()
	c.feedback(Feedback{Stage: FeedbackCommitted, Message: "territory claimed", MutationID: m.ID})
	c.metrics.mutationFinished(string(MutationCommitted))
	return resp.Territory.Clone(), nil
}

// upsertCommand snapshots exactly the state an upsert of t will touch and
// returns the apply/invert pair.
func (c *Coordinator) upsertCommand(t Territory) command {
	prev, existed := c.store.Get(t.ID)
	return command{
		apply: func() { c.store.AddTerritory(t) },
		invert: func() {
			if existed {
				c.store.UpdateTerritory(prev)
			} else {
				c.store.RemoveTerritory(t.ID)
			}
		},
	}
}

func (c *Coordinator) feedback(f Feedback) {
	if c.onFeedback != nil {
		c.onFeedback(f)
	}
}

func (c *Coordinator) staleAggregates() {
	if c.onStale == nil {
		return
	}
	c.onStale(AggregateLeaderboard)
	c.onStale(AggregateStatistics)
}

// classifyMutationError maps a failed mutation to a stable error class,
// falling back to a generic message when the remote error shape is not
// recognized.
func classifyMutationError(resp *MutationResponse, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("claim request failed: %w", err)
	case resp != nil && resp.Error != "":
		return fmt.Errorf("%w: %s", ErrMutationRejected, resp.Error)
	default:
		return ErrMutationFailed
	}
}
