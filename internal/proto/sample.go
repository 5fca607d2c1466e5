package proto

import (
	"github.com/google/uuid"

	"rosgraph/internal/guid"
)

// handleSpace namespaces the deterministic GUID -> instance-handle
// derivation so handles never collide with externally minted UUIDs.
var handleSpace = uuid.MustParse("5b0ed83e-2f7c-4ea2-9f0a-52f1a1d7c9b1")

// HandleForGUID derives the transport's compact instance handle for a
// GUID. The derivation is deterministic, so re-announcements and the
// final disposal of one instance all map to the same handle.
func HandleForGUID(g guid.GUID) guid.Handle {
	return uuid.NewSHA1(handleSpace, g.Bytes())
}

// ParticipantSample is one unit of participant discovery data as handed
// to the builtin reader. Data is only meaningful when ValidData is true
// and the instance is alive; otherwise the sample is a removal keyed by
// Handle.
type ParticipantSample struct {
	Handle    guid.Handle
	ValidData bool
	Alive     bool
	Data      *ParticipantAnnouncement
}

// EndpointSample is the endpoint-channel equivalent of ParticipantSample.
type EndpointSample struct {
	Handle    guid.Handle
	ValidData bool
	Alive     bool
	Data      *EndpointAnnouncement
}
