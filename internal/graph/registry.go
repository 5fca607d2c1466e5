package graph

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"rosgraph/internal/guid"
)

const (
	DefaultLeaseTTL      = 100 * time.Second
	DefaultSweepInterval = 1 * time.Second
)

type participantEntry struct {
	rec        ParticipantRecord
	leaseUntil time.Time
}

// Options configures a Registry. The zero value gets sane defaults; Clock
// exists so tests can drive lease expiry deterministically.
type Options struct {
	Clock         clock.Clock
	LeaseTTL      time.Duration
	SweepInterval time.Duration
	Guard         *GuardCondition
	// OnExpire, when set, observes the number of participants each sweep
	// evicted for a lapsed lease.
	OnExpire func(participants int)
}

// Registry is the authoritative in-memory model of the discovered graph.
// One mutex guards all three maps so every reader observes a consistent
// snapshot; all access goes through methods, and records are copied out.
type Registry struct {
	mu           sync.Mutex
	participants map[guid.GUID]*participantEntry
	endpoints    [entityKinds]map[guid.GUID]EndpointRecord

	clk           clock.Clock
	leaseTTL      time.Duration
	sweepInterval time.Duration
	guard         *GuardCondition
	onExpire      func(int)
}

func NewRegistry(opts Options) *Registry {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	ttl := opts.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	r := &Registry{
		participants:  make(map[guid.GUID]*participantEntry),
		clk:           clk,
		leaseTTL:      ttl,
		sweepInterval: sweep,
		guard:         opts.Guard,
		onExpire:      opts.OnExpire,
	}
	for k := range r.endpoints {
		r.endpoints[k] = make(map[guid.GUID]EndpointRecord)
	}
	return r
}

// UpsertParticipant inserts or replaces a participant record and refreshes
// its lease. Re-announcements may legitimately change name and namespace;
// last write wins.
func (r *Registry) UpsertParticipant(rec ParticipantRecord) {
	r.UpsertParticipantWithLease(rec, 0)
}

// UpsertParticipantWithLease upserts using the participant's announced
// lease duration; lease <= 0 falls back to the registry default.
func (r *Registry) UpsertParticipantWithLease(rec ParticipantRecord, lease time.Duration) {
	if lease <= 0 {
		lease = r.leaseTTL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[rec.GUID] = &participantEntry{
		rec:        rec.clone(),
		leaseUntil: r.clk.Now().Add(lease),
	}
}

// EvictParticipant removes a participant. Unknown GUIDs are a no-op so
// duplicate or late disposal notices are idempotent. The participant's
// endpoints are left alone; their own disposals arrive independently.
func (r *Registry) EvictParticipant(g guid.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, g)
}

func (r *Registry) Participant(g guid.GUID) (ParticipantRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.participants[g]
	if !ok {
		return ParticipantRecord{}, false
	}
	return ent.rec.clone(), true
}

func (r *Registry) Participants() []ParticipantRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ParticipantRecord, 0, len(r.participants))
	for _, ent := range r.participants {
		out = append(out, ent.rec.clone())
	}
	return out
}

func (r *Registry) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// UpsertEndpoint inserts or replaces an endpoint record in the registry
// selected by rec.Kind. The referenced participant need not be known yet.
func (r *Registry) UpsertEndpoint(rec EndpointRecord) {
	if rec.Kind >= entityKinds {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[rec.Kind][rec.GUID] = rec
}

func (r *Registry) EvictEndpoint(kind EntityKind, g guid.GUID) {
	if kind >= entityKinds {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints[kind], g)
}

func (r *Registry) Endpoint(kind EntityKind, g guid.GUID) (EndpointRecord, bool) {
	if kind >= entityKinds {
		return EndpointRecord{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.endpoints[kind][g]
	return rec, ok
}

func (r *Registry) Endpoints(kind EntityKind) []EndpointRecord {
	if kind >= entityKinds {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EndpointRecord, 0, len(r.endpoints[kind]))
	for _, rec := range r.endpoints[kind] {
		out = append(out, rec)
	}
	return out
}

func (r *Registry) EndpointCount(kind EntityKind) int {
	if kind >= entityKinds {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints[kind])
}

// RunSweeper evicts participants whose lease lapsed without a refresh,
// plus the endpoints they own, until ctx is cancelled. A sweep that
// removed anything triggers the guard condition once.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := r.clk.Ticker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			participants, removed := r.sweepExpired()
			if participants > 0 && r.onExpire != nil {
				r.onExpire(participants)
			}
			if removed > 0 && r.guard != nil {
				r.guard.Trigger()
			}
		}
	}
}

func (r *Registry) sweepExpired() (participants, removed int) {
	now := r.clk.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for g, ent := range r.participants {
		if ent.leaseUntil.After(now) {
			continue
		}
		delete(r.participants, g)
		participants++
		removed++
		for k := range r.endpoints {
			for eg, rec := range r.endpoints[k] {
				if rec.ParticipantGUID == g {
					delete(r.endpoints[k], eg)
					removed++
				}
			}
		}
	}
	return participants, removed
}
