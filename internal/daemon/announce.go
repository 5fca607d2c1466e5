package daemon

import (
	"context"
	"time"

	"rosgraph/internal/debuglog"
	"rosgraph/internal/graph"
	"rosgraph/internal/network"
	"rosgraph/internal/node"
	"rosgraph/internal/proto"
)

// runAnnouncer multicasts the participant and its endpoints every tick.
// The first announcement goes out immediately so peers learn about us
// without waiting a full interval.
func (r *Runner) runAnnouncer(ctx context.Context, mcastAddr string) {
	r.announceOnce(mcastAddr)
	ticker := time.NewTicker(r.announceEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.announceOnce(mcastAddr)
		}
	}
}

func (r *Runner) announceOnce(mcastAddr string) {
	payloads, err := r.announcementPayloads()
	if err != nil {
		debuglog.Logf(logComponent, "building announcements: %v", err)
		return
	}
	for _, payload := range payloads {
		if err := network.Announce(mcastAddr, payload); err != nil {
			debuglog.RateLimitedf(logComponent, "announce", 5*time.Second,
				"multicast announce failed: %v", err)
			return
		}
	}
}

// announcementPayloads builds the participant announcement followed by
// one announcement per local endpoint. The same payloads serve both the
// multicast ticker and the unicast catch-up path.
func (r *Runner) announcementPayloads() ([][]byte, error) {
	ud, err := r.Part.UserData()
	if err != nil {
		return nil, err
	}
	pa := proto.ParticipantAnnouncement{
		GUID:          r.Part.GUID,
		DisplayName:   r.Part.Identity.Name,
		UserData:      ud,
		LeaseDuration: r.lease,
		MetaAddr:      r.metaAddr,
	}
	payload, err := pa.Marshal()
	if err != nil {
		return nil, err
	}
	payloads := [][]byte{payload}
	for _, ep := range r.Part.Endpoints() {
		ea := endpointAnnouncement(r.Part, ep, false)
		payload, err := ea.Marshal()
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// announceGoodbye multicasts disposals for the endpoints and then the
// participant itself. Best effort: peers that miss it fall back to lease
// expiry.
func (r *Runner) announceGoodbye(mcastAddr string) {
	for _, ep := range r.Part.Endpoints() {
		ea := endpointAnnouncement(r.Part, ep, true)
		if payload, err := ea.Marshal(); err == nil {
			_ = network.Announce(mcastAddr, payload)
		}
	}
	pa := proto.ParticipantAnnouncement{GUID: r.Part.GUID, Disposed: true}
	if payload, err := pa.Marshal(); err == nil {
		_ = network.Announce(mcastAddr, payload)
	}
	debuglog.Debugf(logComponent, "announced disposal of %s", r.Part.GUID)
}

func endpointAnnouncement(p *node.Participant, ep node.LocalEndpoint, disposed bool) proto.EndpointAnnouncement {
	kind := proto.MsgPublication
	if ep.Kind == graph.Subscriber {
		kind = proto.MsgSubscription
	}
	return proto.EndpointAnnouncement{
		GUID:            ep.GUID,
		ParticipantGUID: p.GUID,
		Disposed:        disposed,
		Kind:            kind,
		Topic:           ep.Topic,
		Type:            ep.Type,
	}
}
