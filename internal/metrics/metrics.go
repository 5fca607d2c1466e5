package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ChangeHeader summarizes one applied graph change for the recent-events
// ring exposed by the status command.
type ChangeHeader struct {
	Kind     string `json:"kind"`
	GUID     string `json:"guid"`
	Topic    string `json:"topic,omitempty"`
	Disposed bool   `json:"disposed"`
}

type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Discovery   DiscoveryMetrics `json:"discovery"`
	Graph       GraphMetrics     `json:"graph"`
	Recent      []ChangeHeader   `json:"recent"`
}

type DiscoveryMetrics struct {
	ParticipantsApplied uint64 `json:"participants_applied"`
	EndpointsApplied    uint64 `json:"endpoints_applied"`
	Removals            uint64 `json:"removals"`
	DropMalformed       uint64 `json:"drop_malformed"`
	DropUnknownHandle   uint64 `json:"drop_unknown_handle"`
}

type GraphMetrics struct {
	GuardTriggers uint64 `json:"guard_triggers"`
	LeaseExpiries uint64 `json:"lease_expiries"`
}

type Metrics struct {
	participantsApplied atomic.Uint64
	endpointsApplied    atomic.Uint64
	removals            atomic.Uint64
	dropMalformed       atomic.Uint64
	dropUnknownHandle   atomic.Uint64
	guardTriggers       atomic.Uint64
	leaseExpiries       atomic.Uint64
	recent              *ChangeRecent
}

func New() *Metrics {
	return &Metrics{recent: NewChangeRecent(64)}
}

func (m *Metrics) Recent() *ChangeRecent {
	return m.recent
}

func (m *Metrics) IncParticipantsApplied() {
	m.participantsApplied.Add(1)
}

func (m *Metrics) IncEndpointsApplied() {
	m.endpointsApplied.Add(1)
}

func (m *Metrics) IncRemovals() {
	m.removals.Add(1)
}

func (m *Metrics) IncDropMalformed() {
	m.dropMalformed.Add(1)
}

func (m *Metrics) IncDropUnknownHandle() {
	m.dropUnknownHandle.Add(1)
}

func (m *Metrics) IncGuardTriggers() {
	m.guardTriggers.Add(1)
}

func (m *Metrics) IncLeaseExpiries() {
	m.leaseExpiries.Add(1)
}

func (m *Metrics) AddLeaseExpiries(n int) {
	if n > 0 {
		m.leaseExpiries.Add(uint64(n))
	}
}

func (m *Metrics) Snapshot() Snapshot {
	recent := []ChangeHeader{}
	if m.recent != nil {
		recent = m.recent.List()
	}
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		Discovery: DiscoveryMetrics{
			ParticipantsApplied: m.participantsApplied.Load(),
			EndpointsApplied:    m.endpointsApplied.Load(),
			Removals:            m.removals.Load(),
			DropMalformed:       m.dropMalformed.Load(),
			DropUnknownHandle:   m.dropUnknownHandle.Load(),
		},
		Graph: GraphMetrics{
			GuardTriggers: m.guardTriggers.Load(),
			LeaseExpiries: m.leaseExpiries.Load(),
		},
		Recent: recent,
	}
}

func (m *Metrics) WriteSnapshot(path string) error {
	if path == "" {
		return nil
	}
	snap := m.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type ChangeRecent struct {
	mu   sync.Mutex
	cap  int
	list []ChangeHeader
}

func NewChangeRecent(capacity int) *ChangeRecent {
	if capacity <= 0 {
		capacity = 64
	}
	return &ChangeRecent{cap: capacity}
}

func (r *ChangeRecent) Add(h ChangeHeader) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) >= r.cap {
		copy(r.list, r.list[1:])
		r.list[len(r.list)-1] = h
		return
	}
	r.list = append(r.list, h)
}

func (r *ChangeRecent) List() []ChangeHeader {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeHeader, len(r.list))
	copy(out, r.list)
	return out
}
