package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"rosgraph/internal/graph"
	"rosgraph/internal/guid"
)

func prefixWithByte(b byte) guid.Prefix {
	var p guid.Prefix
	for i := range p {
		p[i] = b
	}
	return p
}

func participantGUID(b byte) guid.GUID {
	return guid.ParticipantGUID(prefixWithByte(b))
}

func endpointGUID(b byte, eid guid.EntityID) guid.GUID {
	return guid.GUID{Prefix: prefixWithByte(b), Entity: eid}
}

func TestEvictUnknownIsNoOp(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	r.UpsertParticipant(graph.ParticipantRecord{GUID: participantGUID(1), Name: "a"})
	require.Equal(t, 1, r.ParticipantCount())

	r.EvictParticipant(participantGUID(9))
	require.Equal(t, 1, r.ParticipantCount())

	r.EvictEndpoint(graph.Publisher, endpointGUID(9, 0x2c2))
	require.Equal(t, 0, r.EndpointCount(graph.Publisher))

	// a second disposal for the same GUID is idempotent
	r.EvictParticipant(participantGUID(1))
	r.EvictParticipant(participantGUID(1))
	require.Equal(t, 0, r.ParticipantCount())
}

func TestUpsertReplacesInPlace(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	g := participantGUID(1)
	r.UpsertParticipant(graph.ParticipantRecord{GUID: g, Name: "old", Namespace: "/a"})
	r.UpsertParticipant(graph.ParticipantRecord{GUID: g, Name: "new", Namespace: "/b"})

	require.Equal(t, 1, r.ParticipantCount())
	rec, ok := r.Participant(g)
	require.True(t, ok)
	require.Equal(t, "new", rec.Name)
	require.Equal(t, "/b", rec.Namespace)
}

func TestEndpointBeforeParticipant(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	owner := participantGUID(1)
	ep := graph.EndpointRecord{
		GUID:            endpointGUID(1, 0x102),
		ParticipantGUID: owner,
		Topic:           "chatter",
		Type:            "std_msgs/String",
		Kind:            graph.Publisher,
	}
	r.UpsertEndpoint(ep)

	got, ok := r.Endpoint(graph.Publisher, ep.GUID)
	require.True(t, ok)
	require.Equal(t, owner, got.ParticipantGUID)

	// the owning participant arriving later does not disturb the endpoint
	r.UpsertParticipant(graph.ParticipantRecord{GUID: owner, Name: "late"})
	got, ok = r.Endpoint(graph.Publisher, ep.GUID)
	require.True(t, ok)
	require.Equal(t, owner, got.ParticipantGUID)
	require.Equal(t, "chatter", got.Topic)
}

func TestEndpointKindsAreIndependent(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	g := endpointGUID(1, 0x103)
	r.UpsertEndpoint(graph.EndpointRecord{GUID: g, Kind: graph.Publisher, Topic: "t"})
	r.UpsertEndpoint(graph.EndpointRecord{GUID: g, Kind: graph.Subscriber, Topic: "t"})

	require.Equal(t, 1, r.EndpointCount(graph.Publisher))
	require.Equal(t, 1, r.EndpointCount(graph.Subscriber))

	r.EvictEndpoint(graph.Publisher, g)
	require.Equal(t, 0, r.EndpointCount(graph.Publisher))
	require.Equal(t, 1, r.EndpointCount(graph.Subscriber))
}

func TestRecordsAreCopiedOut(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	g := participantGUID(1)
	r.UpsertParticipant(graph.ParticipantRecord{GUID: g, Name: "a", UserData: []byte("name=a")})

	rec, ok := r.Participant(g)
	require.True(t, ok)
	rec.UserData[0] = 'X'

	again, _ := r.Participant(g)
	require.Equal(t, byte('n'), again.UserData[0])
}

func TestLeaseExpirySweepsParticipantAndEndpoints(t *testing.T) {
	mock := clock.NewMock()
	guard := graph.NewGuardCondition()
	r := graph.NewRegistry(graph.Options{
		Clock:         mock,
		LeaseTTL:      5 * time.Second,
		SweepInterval: time.Second,
		Guard:         guard,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunSweeper(ctx)
	time.Sleep(10 * time.Millisecond) // let the sweeper arm its ticker

	stale := participantGUID(1)
	r.UpsertParticipant(graph.ParticipantRecord{GUID: stale, Name: "stale"})
	r.UpsertEndpoint(graph.EndpointRecord{
		GUID:            endpointGUID(1, 0x102),
		ParticipantGUID: stale,
		Kind:            graph.Publisher,
	})

	mock.Add(3 * time.Second)
	require.Equal(t, 1, r.ParticipantCount())

	// a refresh extends the lease
	fresh := participantGUID(2)
	r.UpsertParticipant(graph.ParticipantRecord{GUID: fresh, Name: "fresh"})

	mock.Add(3 * time.Second)
	require.Eventually(t, func() bool {
		return r.ParticipantCount() == 1 && r.EndpointCount(graph.Publisher) == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := r.Participant(fresh)
	require.True(t, ok)
	require.True(t, guard.Triggered())
}
