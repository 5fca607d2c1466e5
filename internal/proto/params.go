package proto

import (
	"encoding/binary"
	"fmt"
)

// Announcement bodies are flat parameter lists: (pid, length, value)
// entries terminated by a sentinel, little-endian, in the style of the
// RTPS discovery wire format. Unknown pids are skipped, which is what
// lets older peers read announcements from newer ones.

type ParamID uint16

const (
	ParamPad             ParamID = 0x0000
	ParamSentinel        ParamID = 0x0001
	ParamLeaseDuration   ParamID = 0x0002
	ParamTopicName       ParamID = 0x0005
	ParamTypeName        ParamID = 0x0007
	ParamProtocolVersion ParamID = 0x0015
	ParamVendorID        ParamID = 0x0016
	ParamUserData        ParamID = 0x002c
	ParamMetaLocator     ParamID = 0x0032
	ParamParticipantGUID ParamID = 0x0050
	ParamEndpointGUID    ParamID = 0x005a
	ParamEntityName      ParamID = 0x0062
)

const maxParamValue = 1 << 16 - 1

type Param struct {
	ID    ParamID
	Value []byte
}

// AppendParam appends one encoded parameter to dst.
func AppendParam(dst []byte, id ParamID, value []byte) ([]byte, error) {
	if len(value) > maxParamValue {
		return nil, fmt.Errorf("param 0x%x value too large: %d", uint16(id), len(value))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(id))
	binary.LittleEndian.PutUint16(hdr[2:], uint16(len(value)))
	dst = append(dst, hdr[:]...)
	return append(dst, value...), nil
}

// AppendSentinel terminates a parameter list.
func AppendSentinel(dst []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(ParamSentinel))
	return append(dst, hdr[:]...)
}

// ParseParams decodes a parameter list up to its sentinel. A truncated
// entry or a missing sentinel fails the whole list; the caller treats
// that as one malformed sample, not a batch failure.
func ParseParams(b []byte) ([]Param, error) {
	var params []Param
	for {
		if len(b) < 4 {
			return nil, fmt.Errorf("param list truncated")
		}
		id := ParamID(binary.LittleEndian.Uint16(b[0:]))
		sz := int(binary.LittleEndian.Uint16(b[2:]))
		b = b[4:]
		if id == ParamSentinel {
			return params, nil
		}
		if len(b) < sz {
			return nil, fmt.Errorf("param 0x%x truncated: want %d bytes, have %d", uint16(id), sz, len(b))
		}
		if id != ParamPad {
			val := make([]byte, sz)
			copy(val, b[:sz])
			params = append(params, Param{ID: id, Value: val})
		}
		b = b[sz:]
	}
}
