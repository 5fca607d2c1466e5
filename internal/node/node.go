// Package node owns the local participant's lifecycle: its identity, the
// graph registry, the guard condition, and the builtin reader are created
// together and torn down together rather than living as process globals.
package node

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rosgraph/internal/builtin"
	"rosgraph/internal/graph"
	"rosgraph/internal/guid"
	"rosgraph/internal/metrics"
)

type Options struct {
	Name          string
	Namespace     string
	LeaseTTL      time.Duration
	SweepInterval time.Duration
}

// LocalEndpoint is an endpoint created by this participant, advertised to
// peers and mirrored into the local graph.
type LocalEndpoint struct {
	GUID  guid.GUID
	Topic string
	Type  string
	Kind  graph.EntityKind
}

// Participant is the local process's presence in the discovery domain.
type Participant struct {
	Prefix   guid.Prefix
	GUID     guid.GUID
	Identity graph.Identity

	Registry *graph.Registry
	Guard    *graph.GuardCondition
	Handles  *guid.HandleMap
	Reader   *builtin.Reader
	Metrics  *metrics.Metrics

	mu        sync.Mutex
	endpoints []LocalEndpoint
	nextKey   uint32

	cancel context.CancelFunc
	closed atomic.Bool
}

// NewParticipant builds a participant and starts its liveliness sweeper.
// The caller must Close it when the node shuts down.
func NewParticipant(opts Options) (*Participant, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("missing participant name")
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "/"
	}
	prefix, err := guid.NewLocalPrefix()
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	guard := graph.NewGuardCondition()
	registry := graph.NewRegistry(graph.Options{
		LeaseTTL:      opts.LeaseTTL,
		SweepInterval: opts.SweepInterval,
		Guard:         guard,
		OnExpire:      m.AddLeaseExpiries,
	})
	handles := guid.NewHandleMap()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Participant{
		Prefix:   prefix,
		GUID:     guid.ParticipantGUID(prefix),
		Identity: graph.Identity{Name: opts.Name, Namespace: namespace},
		Registry: registry,
		Guard:    guard,
		Handles:  handles,
		Reader:   builtin.NewReader(registry, handles, guard, m),
		Metrics:  m,
		cancel:   cancel,
	}
	go registry.RunSweeper(ctx)
	return p, nil
}

// Close tears the participant down: the sweeper stops and any thread
// blocked on the guard condition is released.
func (p *Participant) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	p.Guard.Detach()
}

// UserData is the metadata announced with this participant.
func (p *Participant) UserData() ([]byte, error) {
	return guid.EncodeKeyValue(map[string][]byte{
		"name":      []byte(p.Identity.Name),
		"namespace": []byte(p.Identity.Namespace),
	})
}

// CreatePublisher registers a local writer for announcement to peers.
func (p *Participant) CreatePublisher(topic, typeName string) LocalEndpoint {
	return p.createEndpoint(topic, typeName, graph.Publisher)
}

// CreateSubscriber registers a local reader for announcement to peers.
func (p *Participant) CreateSubscriber(topic, typeName string) LocalEndpoint {
	return p.createEndpoint(topic, typeName, graph.Subscriber)
}

func (p *Participant) createEndpoint(topic, typeName string, kind graph.EntityKind) LocalEndpoint {
	p.mu.Lock()
	p.nextKey++
	key := p.nextKey
	p.mu.Unlock()

	// entity key in the upper octets, kind in the low octet
	eid := guid.EntityID(key << 8)
	if kind == graph.Publisher {
		eid |= 0x02
	} else {
		eid |= 0x07
	}
	ep := LocalEndpoint{
		GUID:  guid.GUID{Prefix: p.Prefix, Entity: eid},
		Topic: topic,
		Type:  typeName,
		Kind:  kind,
	}
	p.mu.Lock()
	p.endpoints = append(p.endpoints, ep)
	p.mu.Unlock()

	// the local graph sees our own endpoints too
	p.Registry.UpsertEndpoint(graph.EndpointRecord{
		GUID:            ep.GUID,
		ParticipantGUID: p.GUID,
		Topic:           topic,
		Type:            typeName,
		Kind:            kind,
	})
	p.Guard.Trigger()
	return ep
}

// Endpoints returns a snapshot of locally created endpoints.
func (p *Participant) Endpoints() []LocalEndpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LocalEndpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// NodeNames resolves names for every discovered participant with the
// local identity first.
func (p *Participant) NodeNames(names, namespaces *[]string) error {
	return p.Registry.NodeNames(p.Identity, names, namespaces)
}

// WaitForGraphChange blocks until the discovery graph changes or the
// timeout lapses, consuming the change notification on success.
func (p *Participant) WaitForGraphChange(timeout time.Duration) bool {
	if !p.Guard.Wait(timeout) {
		return false
	}
	p.Guard.Reset()
	return true
}
