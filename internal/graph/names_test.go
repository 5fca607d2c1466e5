package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rosgraph/internal/graph"
)

func TestNodeNamesEmptyRegistry(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	var names, namespaces []string
	err := r.NodeNames(graph.Identity{Name: "self_node", Namespace: "/"}, &names, &namespaces)
	require.NoError(t, err)
	require.Equal(t, []string{"self_node"}, names)
	require.Equal(t, []string{"/"}, namespaces)
}

func TestNodeNamesDropsAnonymousParticipants(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	r.UpsertParticipant(graph.ParticipantRecord{
		GUID:      participantGUID(1),
		Name:      "alice",
		Namespace: "/ns1",
	})
	r.UpsertParticipant(graph.ParticipantRecord{
		GUID:      participantGUID(2),
		Name:      "",
		Namespace: "/ns2",
	})

	var names, namespaces []string
	err := r.NodeNames(graph.Identity{Name: "self_node", Namespace: "/"}, &names, &namespaces)
	require.NoError(t, err)
	require.Equal(t, []string{"self_node", "alice"}, names)
	require.Equal(t, []string{"/", "/ns1"}, namespaces)

	// the anonymous participant is filtered from output, not evicted
	require.Equal(t, 2, r.ParticipantCount())
}

func TestNodeNamesDisplayNameFallback(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	r.UpsertParticipant(graph.ParticipantRecord{
		GUID:        participantGUID(1),
		DisplayName: "bare_dds_peer",
	})

	var names, namespaces []string
	err := r.NodeNames(graph.Identity{Name: "self_node", Namespace: "/"}, &names, &namespaces)
	require.NoError(t, err)
	require.Equal(t, []string{"self_node", "bare_dds_peer"}, names)
	// missing namespace resolves to the empty string, never dropped
	require.Equal(t, []string{"/", ""}, namespaces)
}

func TestNodeNamesSelfAlwaysFirst(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	for b := byte(1); b <= 5; b++ {
		r.UpsertParticipant(graph.ParticipantRecord{GUID: participantGUID(b), Name: "n"})
	}
	var names, namespaces []string
	err := r.NodeNames(graph.Identity{Name: "me", Namespace: "/here"}, &names, &namespaces)
	require.NoError(t, err)
	require.Len(t, names, 6)
	require.Len(t, namespaces, 6)
	require.Equal(t, "me", names[0])
	require.Equal(t, "/here", namespaces[0])
}

func TestNodeNamesRejectsDirtyOutputs(t *testing.T) {
	r := graph.NewRegistry(graph.Options{})
	r.UpsertParticipant(graph.ParticipantRecord{GUID: participantGUID(1), Name: "alice"})

	dirty := []string{"leftover"}
	var clean []string
	err := r.NodeNames(graph.Identity{Name: "me"}, &dirty, &clean)
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
	// no mutation on failure
	require.Equal(t, []string{"leftover"}, dirty)
	require.Nil(t, clean)

	err = r.NodeNames(graph.Identity{Name: "me"}, &clean, &dirty)
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
	require.Nil(t, clean)

	err = r.NodeNames(graph.Identity{Name: "me"}, nil, &clean)
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
	err = r.NodeNames(graph.Identity{Name: "me"}, &clean, nil)
	require.ErrorIs(t, err, graph.ErrInvalidArgument)
}
