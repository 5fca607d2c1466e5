package guid

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle is the transport's compact instance identifier for a discovery
// sample. Handles only have meaning inside the local reader; GUIDs are the
// global identity.
type Handle = uuid.UUID

// HandleMap keeps the handle -> GUID mapping stable for the lifetime of an
// instance. Resolution of a foreign or expired handle fails; callers log
// and skip the sample.
type HandleMap struct {
	mu sync.Mutex
	m  map[Handle]GUID
}

func NewHandleMap() *HandleMap {
	return &HandleMap{m: make(map[Handle]GUID)}
}

func (h *HandleMap) Bind(handle Handle, g GUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[handle] = g
}

func (h *HandleMap) Resolve(handle Handle) (GUID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.m[handle]
	if !ok {
		return GUID{}, fmt.Errorf("unknown instance handle %s", handle)
	}
	return g, nil
}

// Drop forgets a handle after its instance is disposed. Dropping an
// unknown handle is a no-op.
func (h *HandleMap) Drop(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, handle)
}

func (h *HandleMap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.m)
}
