package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rosgraph/internal/graph"
	"rosgraph/internal/guid"
	"rosgraph/internal/proto"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	catchUpHook = func(*Runner, string) {}
	t.Cleanup(func() { catchUpHook = nil })
	r, err := NewRunner(t.TempDir(), Options{Name: "listener", Namespace: "/test"})
	require.NoError(t, err)
	t.Cleanup(r.Part.Close)
	return r
}

func remotePrefix(b byte) guid.Prefix {
	var p guid.Prefix
	for i := range p {
		p[i] = b
	}
	return p
}

func participantPayload(t *testing.T, prefix guid.Prefix, disposed bool) []byte {
	t.Helper()
	a := proto.ParticipantAnnouncement{
		GUID:     guid.ParticipantGUID(prefix),
		Disposed: disposed,
	}
	if !disposed {
		a.DisplayName = "remote"
		a.UserData = []byte("name=remote;namespace=/demo")
		a.LeaseDuration = 100 * time.Second
	}
	b, err := a.Marshal()
	require.NoError(t, err)
	return b
}

func endpointPayload(t *testing.T, prefix guid.Prefix, kind proto.MsgKind, disposed bool) []byte {
	t.Helper()
	a := proto.EndpointAnnouncement{
		GUID:            guid.GUID{Prefix: prefix, Entity: 0x1102},
		ParticipantGUID: guid.ParticipantGUID(prefix),
		Disposed:        disposed,
		Kind:            kind,
		Topic:           "chatter",
		Type:            "std_msgs/String",
	}
	b, err := a.Marshal()
	require.NoError(t, err)
	return b
}

func TestDispatchAppliesParticipant(t *testing.T) {
	r := newTestRunner(t)
	prefix := remotePrefix(9)

	r.dispatch(participantPayload(t, prefix, false))

	rec, ok := r.Part.Registry.Participant(guid.ParticipantGUID(prefix))
	require.True(t, ok)
	require.Equal(t, "remote", rec.Name)
	require.Equal(t, "/demo", rec.Namespace)
	require.Equal(t, 1, r.peerCount())
}

func TestDispatchIgnoresOwnEcho(t *testing.T) {
	r := newTestRunner(t)

	r.dispatch(participantPayload(t, r.Part.Prefix, false))

	require.Equal(t, 0, r.Part.Registry.ParticipantCount())
	require.Equal(t, 0, r.peerCount())
}

func TestDispatchDropsMalformed(t *testing.T) {
	r := newTestRunner(t)

	r.dispatch(nil)
	r.dispatch([]byte{1, 2})
	r.dispatch([]byte{proto.WireVersion, 99, 0, 0})

	require.Equal(t, uint64(3), r.Metrics.Snapshot().Discovery.DropMalformed)
	require.Equal(t, 0, r.Part.Registry.ParticipantCount())
}

func TestDispatchEndpointLifecycle(t *testing.T) {
	r := newTestRunner(t)
	prefix := remotePrefix(4)
	g := guid.GUID{Prefix: prefix, Entity: 0x1102}

	r.dispatch(endpointPayload(t, prefix, proto.MsgPublication, false))
	rec, ok := r.Part.Registry.Endpoint(graph.Publisher, g)
	require.True(t, ok)
	require.Equal(t, "chatter", rec.Topic)

	r.dispatch(endpointPayload(t, prefix, proto.MsgPublication, true))
	_, ok = r.Part.Registry.Endpoint(graph.Publisher, g)
	require.False(t, ok)
	require.Equal(t, 0, r.Part.Handles.Len())
}

func TestDispatchSubscriptionKind(t *testing.T) {
	r := newTestRunner(t)
	prefix := remotePrefix(5)

	r.dispatch(endpointPayload(t, prefix, proto.MsgSubscription, false))

	require.Equal(t, 1, r.Part.Registry.EndpointCount(graph.Subscriber))
	require.Equal(t, 0, r.Part.Registry.EndpointCount(graph.Publisher))
}

func TestParticipantDisposalForgetsPeer(t *testing.T) {
	r := newTestRunner(t)
	prefix := remotePrefix(7)

	r.dispatch(participantPayload(t, prefix, false))
	require.Equal(t, 1, r.Part.Registry.ParticipantCount())

	r.dispatch(participantPayload(t, prefix, true))
	require.Equal(t, 0, r.Part.Registry.ParticipantCount())
	require.Equal(t, 0, r.peerCount())
}

func TestCatchUpRequestedOncePerPeer(t *testing.T) {
	r := newTestRunner(t)
	var addrs []string
	catchUpHook = func(_ *Runner, addr string) { addrs = append(addrs, addr) }

	a := proto.ParticipantAnnouncement{
		GUID:     guid.ParticipantGUID(remotePrefix(11)),
		UserData: []byte("name=remote"),
		MetaAddr: "127.0.0.1:7411",
	}
	b, err := a.Marshal()
	require.NoError(t, err)
	r.dispatch(b)
	r.dispatch(b) // re-announcement of a known peer

	require.Equal(t, []string{"127.0.0.1:7411"}, addrs)
}

func TestDisposalOfUnknownParticipantSkipped(t *testing.T) {
	r := newTestRunner(t)

	r.dispatch(participantPayload(t, remotePrefix(8), true))

	require.Equal(t, 0, r.Part.Registry.ParticipantCount())
	require.Equal(t, uint64(1), r.Metrics.Snapshot().Discovery.DropUnknownHandle)
}
