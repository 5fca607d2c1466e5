package guid

import (
	"bytes"
	"fmt"
	"sort"
)

// Participant user metadata is a flat byte buffer of key=value pairs
// separated by ';'. Keys are case-sensitive ASCII tokens and may not
// contain '=' or ';'; values are arbitrary bytes except ';'. Unrecognized
// keys are preserved so newer peers can carry fields we do not understand.

// ParseKeyValue decodes a metadata buffer. Pairs without '=' and pairs
// with an empty key are skipped; a later duplicate key wins. An empty or
// nil buffer decodes to an empty map.
func ParseKeyValue(data []byte) map[string][]byte {
	out := make(map[string][]byte)
	for _, pair := range bytes.Split(data, []byte{';'}) {
		if len(pair) == 0 {
			continue
		}
		eq := bytes.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		key := string(pair[:eq])
		val := make([]byte, len(pair)-eq-1)
		copy(val, pair[eq+1:])
		out[key] = val
	}
	return out
}

// EncodeKeyValue is the inverse of ParseKeyValue. Keys are emitted in
// sorted order so the encoding is deterministic.
func EncodeKeyValue(kv map[string][]byte) ([]byte, error) {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		if k == "" {
			return nil, fmt.Errorf("empty metadata key")
		}
		if bytes.ContainsAny([]byte(k), "=;") {
			return nil, fmt.Errorf("metadata key %q contains reserved byte", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for i, k := range keys {
		if bytes.IndexByte(kv[k], ';') != -1 {
			return nil, fmt.Errorf("metadata value for %q contains ';'", k)
		}
		if i > 0 {
			buf.WriteByte(';')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.Write(kv[k])
	}
	return buf.Bytes(), nil
}
