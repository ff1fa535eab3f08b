package util

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
)

// InFlightRegistry tracks pending operations by key ("kind:id"). A key can
// only be held once, and a kind may carry a cap on how many of its keys are
// pending at the same time.
type InFlightRegistry struct {
	mu       sync.Mutex
	pending  map[string]*Lease
	perKind  map[string]int
	limits   map[string]int
	onChange func(kind string, delta int)
}

// Lease is the handle of one pending operation. Its context is cancelled by
// Release, by CancelOwner for its owner, or by the parent context.
type Lease struct {
	Key   string
	Kind  string
	Owner string

	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	release func()
}

func (l *Lease) Context() context.Context {
	return l.ctx
}

// Release frees the key. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.cancel()
		l.release()
	})
}

// NewInFlightRegistry creates a registry. limits maps a kind to its maximum
// number of concurrent keys; kinds not listed are only unique per key.
func NewInFlightRegistry(limits map[string]int) *InFlightRegistry {
	copied := make(map[string]int, len(limits))
	for kind, limit := range limits {
		copied[kind] = limit
	}
	return &InFlightRegistry{
		pending: make(map[string]*Lease),
		perKind: make(map[string]int),
		limits:  copied,
	}
}

// OnChange registers a hook called with +1 after every acquire and -1 after
// every release of a kind.
func (r *InFlightRegistry) OnChange(fn func(kind string, delta int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func InFlightKey(kind, id string) string {
	if id == "" {
		return kind
	}
	return kind + ":" + id
}

// Acquire reserves kind/id for owner. It fails with an InFlightError when the
// key is already pending or the kind is at its limit.
func (r *InFlightRegistry) Acquire(parent context.Context, owner, kind, id string) (*Lease, error) {
	key := InFlightKey(kind, id)

	r.mu.Lock()
	if _, exists := r.pending[key]; exists {
		r.mu.Unlock()
		return nil, apperrors.NewInFlightError("ya hay una operación en curso para este elemento", key)
	}
	if limit, ok := r.limits[kind]; ok && limit > 0 && r.perKind[kind] >= limit {
		r.mu.Unlock()
		return nil, apperrors.NewInFlightError("ya hay una generación de este tipo en curso", key)
	}

	ctx, cancel := context.WithCancel(parent)
	lease := &Lease{Key: key, Kind: kind, Owner: owner, ctx: ctx, cancel: cancel}
	lease.release = func() { r.remove(lease) }

	r.pending[key] = lease
	r.perKind[kind]++
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(kind, 1)
	}
	return lease, nil
}

func (r *InFlightRegistry) remove(lease *Lease) {
	r.mu.Lock()
	current, ok := r.pending[lease.Key]
	if !ok || current != lease {
		r.mu.Unlock()
		return
	}
	delete(r.pending, lease.Key)
	r.perKind[lease.Kind]--
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(lease.Kind, -1)
	}
}

// CancelOwner cancels every lease held by owner and returns how many were
// cancelled. The leases stay registered until their holders release them.
func (r *InFlightRegistry) CancelOwner(owner string) int {
	return r.cancelWhere(func(l *Lease) bool { return l.Owner == owner })
}

// CancelKinds cancels every pending lease of the given kinds and returns how
// many were cancelled.
func (r *InFlightRegistry) CancelKinds(kinds ...string) int {
	return r.cancelWhere(func(l *Lease) bool {
		for _, kind := range kinds {
			if l.Kind == kind {
				return true
			}
		}
		return false
	})
}

// CancelAll cancels every pending lease.
func (r *InFlightRegistry) CancelAll() {
	r.cancelWhere(func(*Lease) bool { return true })
}

func (r *InFlightRegistry) cancelWhere(match func(*Lease) bool) int {
	r.mu.Lock()
	var targets []*Lease
	for _, lease := range r.pending {
		if match(lease) {
			targets = append(targets, lease)
		}
	}
	r.mu.Unlock()

	for _, lease := range targets {
		lease.cancel()
	}
	return len(targets)
}

func (r *InFlightRegistry) IsPending(kind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[InFlightKey(kind, id)]
	return ok
}

// Keys returns the pending keys in sorted order.
func (r *InFlightRegistry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.pending))
	for key := range r.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
