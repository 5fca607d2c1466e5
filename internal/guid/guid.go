package guid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
)

const (
	PrefixLen = 12
	Len       = PrefixLen + 4
)

// Entity id layout follows the RTPS convention: three key octets plus a
// kind octet, with the source bits distinguishing builtin from user
// entities.
const (
	EntityUnknown     EntityID = 0x0
	EntityParticipant EntityID = 0x1c1

	entitySourceMask    = 0xc0
	entitySourceBuiltin = 0xc0
	entityKindMask      = 0x3f
	entityKindWriter    = 0x02
	entityKindReader    = 0x07
)

type EntityID uint32

func (eid EntityID) Kind() uint8 {
	return uint8(eid & 0xff)
}

func (eid EntityID) IsWriter() bool {
	return eid&entityKindMask == entityKindWriter
}

func (eid EntityID) IsReader() bool {
	return eid&entityKindMask == entityKindReader
}

func (eid EntityID) IsBuiltin() bool {
	return eid&entitySourceMask == entitySourceBuiltin
}

// Prefix identifies a participant; all entities owned by one participant
// share its prefix.
type Prefix [PrefixLen]byte

func (p Prefix) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x%02x%02x-%02x%02x%02x%02x",
		p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7], p[8], p[9], p[10], p[11])
}

func (p Prefix) IsZero() bool {
	return p == Prefix{}
}

// GUID is the 16-byte global identifier of a participant or endpoint.
// It is comparable and safe to use as a map key.
type GUID struct {
	Prefix Prefix
	Entity EntityID
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:0x%x", g.Prefix, uint32(g.Entity))
}

func (g GUID) IsZero() bool {
	return g.Prefix.IsZero() && g.Entity == EntityUnknown
}

func (g GUID) Bytes() []byte {
	b := make([]byte, Len)
	copy(b, g.Prefix[:])
	binary.BigEndian.PutUint32(b[PrefixLen:], uint32(g.Entity))
	return b
}

func FromBytes(b []byte) (GUID, error) {
	if len(b) != Len {
		return GUID{}, fmt.Errorf("guid must be %d bytes, got %d", Len, len(b))
	}
	var g GUID
	copy(g.Prefix[:], b[:PrefixLen])
	g.Entity = EntityID(binary.BigEndian.Uint32(b[PrefixLen:]))
	return g, nil
}

// ParticipantGUID returns the participant entity for a prefix.
func ParticipantGUID(prefix Prefix) GUID {
	return GUID{Prefix: prefix, Entity: EntityParticipant}
}

// NewLocalPrefix derives a prefix for the local participant from host
// identity plus fresh randomness, hashed so the prefix leaks neither.
func NewLocalPrefix() (Prefix, error) {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return Prefix{}, err
	}
	host, _ := os.Hostname()
	h, err := blake2b.New(PrefixLen, nil)
	if err != nil {
		return Prefix{}, err
	}
	h.Write([]byte(host))
	var pid [8]byte
	binary.BigEndian.PutUint64(pid[:], uint64(os.Getpid()))
	h.Write(pid[:])
	h.Write(seed[:])
	var p Prefix
	copy(p[:], h.Sum(nil))
	return p, nil
}
