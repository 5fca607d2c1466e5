package graph

import (
	"rosgraph/internal/guid"
)

// EntityKind selects which endpoint registry a record belongs to. These
// are the only entity kinds the graph tracks.
type EntityKind uint8

const (
	Publisher EntityKind = iota
	Subscriber
	entityKinds
)

func (k EntityKind) String() string {
	switch k {
	case Publisher:
		return "publisher"
	case Subscriber:
		return "subscriber"
	default:
		return "unknown"
	}
}

// Identity is the locally configured (name, namespace) of the running
// participant. It is never derived from discovery.
type Identity struct {
	Name      string
	Namespace string
}

// ParticipantRecord is the graph's view of one discovered participant.
// Name and Namespace are decoded from UserData at upsert time; DisplayName
// is the transport-level participant name used as a fallback when the
// metadata carries no name.
type ParticipantRecord struct {
	GUID        guid.GUID
	UserData    []byte
	DisplayName string
	Name        string
	Namespace   string
}

func (r ParticipantRecord) clone() ParticipantRecord {
	if r.UserData != nil {
		ud := make([]byte, len(r.UserData))
		copy(ud, r.UserData)
		r.UserData = ud
	}
	return r
}

// EndpointRecord is the graph's view of one discovered reader or writer.
// ParticipantGUID may reference a participant the graph has not seen yet;
// announcements for the two arrive independently.
type EndpointRecord struct {
	GUID            guid.GUID
	ParticipantGUID guid.GUID
	Topic           string
	Type            string
	Kind            EntityKind
}
