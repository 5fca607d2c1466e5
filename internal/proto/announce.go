package proto

import (
	"encoding/binary"
	"fmt"
	"time"

	"rosgraph/internal/guid"
)

const (
	WireVersion = 1
	VendorID    = 0x1234
)

// MsgKind distinguishes the three builtin announcement channels.
type MsgKind uint8

const (
	MsgParticipant MsgKind = 1 + iota
	MsgPublication
	MsgSubscription
)

const (
	flagDisposed = 1 << 0
)

// ParticipantAnnouncement advertises the presence (or disposal) of one
// participant, together with the metadata node-name resolution feeds on.
type ParticipantAnnouncement struct {
	GUID          guid.GUID
	Disposed      bool
	DisplayName   string
	UserData      []byte
	LeaseDuration time.Duration
	// MetaAddr is the participant's unicast metatraffic address for
	// endpoint catch-up exchanges.
	MetaAddr string
}

// EndpointAnnouncement advertises one reader or writer. Kind selects the
// publication or subscription channel.
type EndpointAnnouncement struct {
	GUID            guid.GUID
	ParticipantGUID guid.GUID
	Disposed        bool
	Kind            MsgKind
	Topic           string
	Type            string
}

func header(kind MsgKind, disposed bool) []byte {
	flags := byte(0)
	if disposed {
		flags |= flagDisposed
	}
	return []byte{WireVersion, byte(kind), flags, 0}
}

func appendCommonParams(body []byte) ([]byte, error) {
	body, err := AppendParam(body, ParamProtocolVersion, []byte{WireVersion, 0})
	if err != nil {
		return nil, err
	}
	var vendor [2]byte
	binary.BigEndian.PutUint16(vendor[:], VendorID)
	return AppendParam(body, ParamVendorID, vendor[:])
}

func (a *ParticipantAnnouncement) Marshal() ([]byte, error) {
	body := header(MsgParticipant, a.Disposed)
	body, err := appendCommonParams(body)
	if err != nil {
		return nil, err
	}
	if body, err = AppendParam(body, ParamParticipantGUID, a.GUID.Bytes()); err != nil {
		return nil, err
	}
	if !a.Disposed {
		if a.DisplayName != "" {
			if body, err = AppendParam(body, ParamEntityName, []byte(a.DisplayName)); err != nil {
				return nil, err
			}
		}
		if len(a.UserData) > 0 {
			if body, err = AppendParam(body, ParamUserData, a.UserData); err != nil {
				return nil, err
			}
		}
		if a.LeaseDuration > 0 {
			var lease [8]byte
			binary.LittleEndian.PutUint64(lease[:], uint64(a.LeaseDuration))
			if body, err = AppendParam(body, ParamLeaseDuration, lease[:]); err != nil {
				return nil, err
			}
		}
		if a.MetaAddr != "" {
			if body, err = AppendParam(body, ParamMetaLocator, []byte(a.MetaAddr)); err != nil {
				return nil, err
			}
		}
	}
	return AppendSentinel(body), nil
}

func (a *EndpointAnnouncement) Marshal() ([]byte, error) {
	if a.Kind != MsgPublication && a.Kind != MsgSubscription {
		return nil, fmt.Errorf("bad endpoint message kind %d", a.Kind)
	}
	body := header(a.Kind, a.Disposed)
	body, err := appendCommonParams(body)
	if err != nil {
		return nil, err
	}
	if body, err = AppendParam(body, ParamEndpointGUID, a.GUID.Bytes()); err != nil {
		return nil, err
	}
	if !a.Disposed {
		if body, err = AppendParam(body, ParamParticipantGUID, a.ParticipantGUID.Bytes()); err != nil {
			return nil, err
		}
		if body, err = AppendParam(body, ParamTopicName, []byte(a.Topic)); err != nil {
			return nil, err
		}
		if body, err = AppendParam(body, ParamTypeName, []byte(a.Type)); err != nil {
			return nil, err
		}
	}
	return AppendSentinel(body), nil
}

// PeekKind classifies an announcement without fully decoding it.
func PeekKind(b []byte) (MsgKind, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("announcement too short")
	}
	if b[0] != WireVersion {
		return 0, fmt.Errorf("unsupported wire version %d", b[0])
	}
	kind := MsgKind(b[1])
	switch kind {
	case MsgParticipant, MsgPublication, MsgSubscription:
		return kind, nil
	default:
		return 0, fmt.Errorf("unknown announcement kind %d", b[1])
	}
}

func UnmarshalParticipant(b []byte) (*ParticipantAnnouncement, error) {
	kind, err := PeekKind(b)
	if err != nil {
		return nil, err
	}
	if kind != MsgParticipant {
		return nil, fmt.Errorf("not a participant announcement")
	}
	params, err := ParseParams(b[4:])
	if err != nil {
		return nil, err
	}
	a := &ParticipantAnnouncement{Disposed: b[2]&flagDisposed != 0}
	for _, p := range params {
		switch p.ID {
		case ParamParticipantGUID:
			if a.GUID, err = guid.FromBytes(p.Value); err != nil {
				return nil, err
			}
		case ParamEntityName:
			a.DisplayName = string(p.Value)
		case ParamUserData:
			a.UserData = p.Value
		case ParamLeaseDuration:
			if len(p.Value) != 8 {
				return nil, fmt.Errorf("bad lease duration length %d", len(p.Value))
			}
			a.LeaseDuration = time.Duration(binary.LittleEndian.Uint64(p.Value))
		case ParamMetaLocator:
			a.MetaAddr = string(p.Value)
		}
	}
	if a.GUID.IsZero() {
		return nil, fmt.Errorf("participant announcement without GUID")
	}
	return a, nil
}

func UnmarshalEndpoint(b []byte) (*EndpointAnnouncement, error) {
	kind, err := PeekKind(b)
	if err != nil {
		return nil, err
	}
	if kind != MsgPublication && kind != MsgSubscription {
		return nil, fmt.Errorf("not an endpoint announcement")
	}
	params, err := ParseParams(b[4:])
	if err != nil {
		return nil, err
	}
	a := &EndpointAnnouncement{Kind: kind, Disposed: b[2]&flagDisposed != 0}
	for _, p := range params {
		switch p.ID {
		case ParamEndpointGUID:
			if a.GUID, err = guid.FromBytes(p.Value); err != nil {
				return nil, err
			}
		case ParamParticipantGUID:
			if a.ParticipantGUID, err = guid.FromBytes(p.Value); err != nil {
				return nil, err
			}
		case ParamTopicName:
			a.Topic = string(p.Value)
		case ParamTypeName:
			a.Type = string(p.Value)
		}
	}
	if a.GUID.IsZero() {
		return nil, fmt.Errorf("endpoint announcement without GUID")
	}
	return a, nil
}
