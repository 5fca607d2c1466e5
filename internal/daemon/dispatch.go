package daemon

import (
	"context"
	"time"

	"rosgraph/internal/debuglog"
	"rosgraph/internal/graph"
	"rosgraph/internal/network"
	"rosgraph/internal/proto"
)

const malformedLogInterval = 5 * time.Second

// catchUpHook intercepts catch-up sends in tests.
var catchUpHook func(r *Runner, addr string)

// dispatch applies one received announcement frame. It runs on the
// transport's receive goroutine; a malformed frame is counted, logged,
// and dropped without affecting the transport loop.
func (r *Runner) dispatch(payload []byte) {
	kind, err := proto.PeekKind(payload)
	if err != nil {
		r.dropMalformed(err)
		return
	}
	switch kind {
	case proto.MsgParticipant:
		r.applyParticipant(payload)
	case proto.MsgPublication:
		r.applyEndpoint(graph.Publisher, payload)
	case proto.MsgSubscription:
		r.applyEndpoint(graph.Subscriber, payload)
	}
}

func (r *Runner) applyParticipant(payload []byte) {
	a, err := proto.UnmarshalParticipant(payload)
	if err != nil {
		r.dropMalformed(err)
		return
	}
	if a.GUID.Prefix == r.Part.Prefix {
		// our own announcement echoed back
		return
	}
	h := proto.HandleForGUID(a.GUID)
	alive := !a.Disposed
	if alive {
		r.Part.Handles.Bind(h, a.GUID)
		if r.trackPeer(a.GUID.Prefix, a.MetaAddr) && a.MetaAddr != "" && !r.observer {
			debuglog.Debugf(logComponent, "new participant %s at %s, sending catch-up", a.GUID, a.MetaAddr)
			if catchUpHook != nil {
				catchUpHook(r, a.MetaAddr)
			} else {
				go r.catchUp(a.MetaAddr)
			}
		}
	} else {
		r.forgetPeer(a.GUID.Prefix)
	}
	r.Part.Reader.ProcessParticipants([]proto.ParticipantSample{{
		Handle:    h,
		ValidData: alive,
		Alive:     alive,
		Data:      a,
	}})
}

func (r *Runner) applyEndpoint(kind graph.EntityKind, payload []byte) {
	a, err := proto.UnmarshalEndpoint(payload)
	if err != nil {
		r.dropMalformed(err)
		return
	}
	if a.GUID.Prefix == r.Part.Prefix {
		return
	}
	h := proto.HandleForGUID(a.GUID)
	alive := !a.Disposed
	if alive {
		r.Part.Handles.Bind(h, a.GUID)
	}
	r.Part.Reader.ProcessEndpoints(kind, []proto.EndpointSample{{
		Handle:    h,
		ValidData: alive,
		Alive:     alive,
		Data:      a,
	}})
}

// catchUp pushes our participant announcement and every local endpoint to
// one newly discovered peer over its metatraffic address, so it does not
// have to wait for the multicast ticker to learn our endpoints.
func (r *Runner) catchUp(addr string) {
	payloads, err := r.announcementPayloads()
	if err != nil {
		debuglog.Logf(logComponent, "building catch-up payloads: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := network.Send(ctx, addr, payloads); err != nil {
		debuglog.RateLimitedf(logComponent, "catch-up-send", 5*time.Second,
			"catch-up to %s failed: %v", addr, err)
	}
}

func (r *Runner) dropMalformed(err error) {
	r.Metrics.IncDropMalformed()
	debuglog.RateLimitedf(logComponent, "malformed", malformedLogInterval,
		"dropping malformed announcement: %v", err)
}
