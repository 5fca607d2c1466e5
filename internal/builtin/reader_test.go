package builtin_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rosgraph/internal/builtin"
	"rosgraph/internal/graph"
	"rosgraph/internal/guid"
	"rosgraph/internal/metrics"
	"rosgraph/internal/proto"
)

type fixture struct {
	registry *graph.Registry
	handles  *guid.HandleMap
	guard    *graph.GuardCondition
	metrics  *metrics.Metrics
	reader   *builtin.Reader
}

func newFixture() *fixture {
	f := &fixture{
		registry: graph.NewRegistry(graph.Options{}),
		handles:  guid.NewHandleMap(),
		guard:    graph.NewGuardCondition(),
		metrics:  metrics.New(),
	}
	f.reader = builtin.NewReader(f.registry, f.handles, f.guard, f.metrics)
	return f
}

func prefixWithByte(b byte) guid.Prefix {
	var p guid.Prefix
	for i := range p {
		p[i] = b
	}
	return p
}

func (f *fixture) participantSample(b byte, name, namespace string) proto.ParticipantSample {
	g := guid.ParticipantGUID(prefixWithByte(b))
	h := proto.HandleForGUID(g)
	f.handles.Bind(h, g)
	ud, _ := guid.EncodeKeyValue(map[string][]byte{
		"name":      []byte(name),
		"namespace": []byte(namespace),
	})
	return proto.ParticipantSample{
		Handle:    h,
		ValidData: true,
		Alive:     true,
		Data: &proto.ParticipantAnnouncement{
			GUID:     g,
			UserData: ud,
		},
	}
}

func (f *fixture) disposalSample(b byte) proto.ParticipantSample {
	g := guid.ParticipantGUID(prefixWithByte(b))
	h := proto.HandleForGUID(g)
	f.handles.Bind(h, g)
	return proto.ParticipantSample{Handle: h, ValidData: false, Alive: false}
}

func TestProcessParticipantsUpserts(t *testing.T) {
	f := newFixture()
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "alice", "/ns1"),
	})

	rec, ok := f.registry.Participant(guid.ParticipantGUID(prefixWithByte(1)))
	require.True(t, ok)
	require.Equal(t, "alice", rec.Name)
	require.Equal(t, "/ns1", rec.Namespace)
	require.True(t, f.guard.Wait(0))
}

func TestProcessParticipantsRemovesOnDisposal(t *testing.T) {
	f := newFixture()
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "alice", "/ns1"),
	})
	f.guard.Reset()

	f.reader.ProcessParticipants([]proto.ParticipantSample{f.disposalSample(1)})
	require.Equal(t, 0, f.registry.ParticipantCount())
	require.True(t, f.guard.Wait(0))
	// the disposed instance's handle is forgotten
	require.Equal(t, 0, f.handles.Len())
}

func TestUnresolvableHandleSkipsSampleOnly(t *testing.T) {
	f := newFixture()
	foreign := proto.ParticipantSample{Handle: proto.HandleForGUID(guid.ParticipantGUID(prefixWithByte(9)))}
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		foreign,
		f.participantSample(1, "alice", "/ns1"),
	})

	require.Equal(t, 1, f.registry.ParticipantCount())
	snap := f.metrics.Snapshot()
	require.Equal(t, uint64(1), snap.Discovery.DropUnknownHandle)
	require.Equal(t, uint64(1), snap.Discovery.ParticipantsApplied)
	// the batch still signals even though one sample was dropped
	require.True(t, f.guard.Wait(0))
}

func TestEmptyBatchDoesNotSignal(t *testing.T) {
	f := newFixture()
	f.reader.ProcessParticipants(nil)
	f.reader.ProcessEndpoints(graph.Publisher, nil)
	require.False(t, f.guard.Wait(0))
	require.Equal(t, uint64(0), f.metrics.Snapshot().Graph.GuardTriggers)
}

func TestBatchSignalsOnceNotPerSample(t *testing.T) {
	f := newFixture()
	batch := []proto.ParticipantSample{
		f.participantSample(1, "a", "/x"),
		f.participantSample(2, "b", "/y"),
		f.participantSample(3, "c", "/z"),
	}
	f.reader.ProcessParticipants(batch)
	require.Equal(t, uint64(1), f.metrics.Snapshot().Graph.GuardTriggers)
	require.True(t, f.guard.Wait(0))
	f.guard.Reset()
	require.False(t, f.guard.Wait(0))
}

func TestProcessEndpointsBeforeParticipant(t *testing.T) {
	f := newFixture()
	owner := guid.ParticipantGUID(prefixWithByte(1))
	epGUID := guid.GUID{Prefix: prefixWithByte(1), Entity: 0x102}
	h := proto.HandleForGUID(epGUID)
	f.handles.Bind(h, epGUID)

	f.reader.ProcessEndpoints(graph.Publisher, []proto.EndpointSample{{
		Handle:    h,
		ValidData: true,
		Alive:     true,
		Data: &proto.EndpointAnnouncement{
			GUID:            epGUID,
			ParticipantGUID: owner,
			Kind:            proto.MsgPublication,
			Topic:           "chatter",
			Type:            "std_msgs/String",
		},
	}})

	rec, ok := f.registry.Endpoint(graph.Publisher, epGUID)
	require.True(t, ok)
	require.Equal(t, owner, rec.ParticipantGUID)
	require.Equal(t, 0, f.registry.ParticipantCount())

	// late participant announcement leaves the endpoint untouched
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "late", "/ns"),
	})
	rec, ok = f.registry.Endpoint(graph.Publisher, epGUID)
	require.True(t, ok)
	require.Equal(t, "chatter", rec.Topic)
}

func TestEndpointDisposalUnknownGUIDIsNoOp(t *testing.T) {
	f := newFixture()
	g := guid.GUID{Prefix: prefixWithByte(4), Entity: 0x107}
	h := proto.HandleForGUID(g)
	f.handles.Bind(h, g)

	f.reader.ProcessEndpoints(graph.Subscriber, []proto.EndpointSample{{
		Handle: h, ValidData: false, Alive: false,
	}})
	require.Equal(t, 0, f.registry.EndpointCount(graph.Subscriber))
	require.Equal(t, uint64(1), f.metrics.Snapshot().Discovery.Removals)
}

func TestReannouncementRefreshesMetadata(t *testing.T) {
	f := newFixture()
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "old_name", "/old"),
	})
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "new_name", "/new"),
	})

	require.Equal(t, 1, f.registry.ParticipantCount())
	rec, _ := f.registry.Participant(guid.ParticipantGUID(prefixWithByte(1)))
	require.Equal(t, "new_name", rec.Name)
	require.Equal(t, "/new", rec.Namespace)
}

func TestGuardWaitSeesBatchFromAnotherGoroutine(t *testing.T) {
	f := newFixture()
	done := make(chan bool, 1)
	go func() {
		done <- f.guard.Wait(2 * time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	f.reader.ProcessParticipants([]proto.ParticipantSample{
		f.participantSample(1, "alice", "/ns1"),
	})
	select {
	case got := <-done:
		require.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by batch")
	}
}
