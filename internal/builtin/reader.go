// Package builtin consumes discovery samples from the transport's builtin
// channels and applies them to the graph registry. It runs on the
// transport's callback goroutine; failures here degrade discovery but
// must never abort the caller.
package builtin

import (
	"time"

	"rosgraph/internal/debuglog"
	"rosgraph/internal/graph"
	"rosgraph/internal/guid"
	"rosgraph/internal/metrics"
	"rosgraph/internal/proto"
)

const logComponent = "rosgraph.builtin"

const unknownHandleLogInterval = 5 * time.Second

// Reader applies discovery sample batches to the registry and signals the
// guard condition once per non-empty batch, coalescing wakeups during
// discovery storms.
type Reader struct {
	registry *graph.Registry
	handles  *guid.HandleMap
	guard    *graph.GuardCondition
	metrics  *metrics.Metrics
}

func NewReader(registry *graph.Registry, handles *guid.HandleMap, guard *graph.GuardCondition, m *metrics.Metrics) *Reader {
	return &Reader{
		registry: registry,
		handles:  handles,
		guard:    guard,
		metrics:  m,
	}
}

// ProcessParticipants applies one batch of participant discovery samples
// in delivery order. Samples whose handle cannot be resolved are logged
// and skipped; the rest of the batch continues.
func (r *Reader) ProcessParticipants(batch []proto.ParticipantSample) {
	for _, s := range batch {
		g, err := r.handles.Resolve(s.Handle)
		if err != nil {
			r.metrics.IncDropUnknownHandle()
			debuglog.RateLimitedf(logComponent, "unknown-participant-handle", unknownHandleLogInterval,
				"skipping participant sample: %v", err)
			continue
		}
		if s.ValidData && s.Alive && s.Data != nil {
			kv := guid.ParseKeyValue(s.Data.UserData)
			r.registry.UpsertParticipantWithLease(graph.ParticipantRecord{
				GUID:        g,
				UserData:    s.Data.UserData,
				DisplayName: s.Data.DisplayName,
				Name:        string(kv["name"]),
				Namespace:   string(kv["namespace"]),
			}, s.Data.LeaseDuration)
			r.metrics.IncParticipantsApplied()
			r.metrics.Recent().Add(metrics.ChangeHeader{Kind: "participant", GUID: g.String()})
		} else {
			r.registry.EvictParticipant(g)
			r.handles.Drop(s.Handle)
			r.metrics.IncRemovals()
			r.metrics.Recent().Add(metrics.ChangeHeader{Kind: "participant", GUID: g.String(), Disposed: true})
		}
	}
	r.signal(len(batch))
}

// ProcessEndpoints applies one batch of endpoint discovery samples for a
// single direction. The owning participant may be unknown; the record is
// stored anyway and the graphs converge as announcements arrive.
func (r *Reader) ProcessEndpoints(kind graph.EntityKind, batch []proto.EndpointSample) {
	for _, s := range batch {
		g, err := r.handles.Resolve(s.Handle)
		if err != nil {
			r.metrics.IncDropUnknownHandle()
			debuglog.RateLimitedf(logComponent, "unknown-endpoint-handle", unknownHandleLogInterval,
				"skipping %s sample: %v", kind, err)
			continue
		}
		if s.ValidData && s.Alive && s.Data != nil {
			r.registry.UpsertEndpoint(graph.EndpointRecord{
				GUID:            g,
				ParticipantGUID: s.Data.ParticipantGUID,
				Topic:           s.Data.Topic,
				Type:            s.Data.Type,
				Kind:            kind,
			})
			r.metrics.IncEndpointsApplied()
			r.metrics.Recent().Add(metrics.ChangeHeader{Kind: kind.String(), GUID: g.String(), Topic: s.Data.Topic})
		} else {
			r.registry.EvictEndpoint(kind, g)
			r.handles.Drop(s.Handle)
			r.metrics.IncRemovals()
			r.metrics.Recent().Add(metrics.ChangeHeader{Kind: kind.String(), GUID: g.String(), Disposed: true})
		}
	}
	r.signal(len(batch))
}

// signal fires the guard condition once per non-empty batch. Skipped
// samples still count: the batch carried discovery traffic and waiters
// re-inspect the registry themselves.
func (r *Reader) signal(samples int) {
	if samples == 0 {
		return
	}
	r.guard.Trigger()
	r.metrics.IncGuardTriggers()
}
