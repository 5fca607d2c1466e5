// Package daemon wires the local participant to the discovery transports:
// the multicast announcement channel, the unicast metatraffic listener,
// and the periodic self-announcement ticker.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"rosgraph/internal/debuglog"
	"rosgraph/internal/guid"
	"rosgraph/internal/metrics"
	"rosgraph/internal/network"
	"rosgraph/internal/node"
	"rosgraph/internal/pprofutil"
)

const logComponent = "rosgraph.daemon"

const (
	defaultAnnounceInterval = 1 * time.Second
	defaultMetaAddr         = "0.0.0.0:7411"
	snapshotInterval        = 1 * time.Second
)

type Options struct {
	Name      string
	Namespace string
	DomainID  int
	// MetaAddr is the unicast metatraffic listen address advertised to
	// peers for endpoint catch-up.
	MetaAddr         string
	SnapPath         string
	AnnounceInterval time.Duration
	LeaseTTL         time.Duration
}

// Runner owns one participant's presence on the wire. Create it with
// NewRunner and drive it with Run; cancelling the context is the only
// way to stop it.
type Runner struct {
	Root    string
	Part    *node.Participant
	Metrics *metrics.Metrics

	domainID      int
	metaAddr      string
	announceEvery time.Duration
	lease         time.Duration
	snapPath      string
	stopSnap      chan struct{}

	observer bool

	mu        sync.Mutex
	peerAddrs map[guid.Prefix]string
}

func NewRunner(root string, opts Options) (*Runner, error) {
	if root == "" {
		return nil, fmt.Errorf("missing root")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, err
	}
	part, err := node.NewParticipant(node.Options{
		Name:      opts.Name,
		Namespace: opts.Namespace,
		LeaseTTL:  opts.LeaseTTL,
	})
	if err != nil {
		return nil, err
	}
	metaAddr := opts.MetaAddr
	if metaAddr == "" {
		metaAddr = defaultMetaAddr
	}
	snapPath := opts.SnapPath
	if snapPath == "" {
		snapPath = filepath.Join(root, "metrics.json")
	}
	return &Runner{
		Root:          root,
		Part:          part,
		Metrics:       part.Metrics,
		domainID:      opts.DomainID,
		metaAddr:      metaAddr,
		announceEvery: announceInterval(opts.AnnounceInterval),
		lease:         leaseTTL(opts.LeaseTTL),
		snapPath:      snapPath,
		stopSnap:      make(chan struct{}),
	}, nil
}

// Run starts the listeners and the announcer and blocks until ctx is
// cancelled or a transport fails. On shutdown the participant's disposal
// is announced so peers evict us without waiting out the lease.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("missing runner")
	}
	defer r.Part.Close()
	if err := pprofutil.StartFromEnv(os.Stderr); err != nil {
		return err
	}
	r.StartSnapshotWriter(snapshotInterval)
	defer r.StopSnapshotWriter()

	mcastAddr := network.MulticastAddr(r.domainID)
	errCh := make(chan error, 2)
	go func() {
		errCh <- network.ListenAndServe(ctx, r.metaAddr, r.dispatch)
	}()
	go func() {
		errCh <- network.ListenMulticast(ctx, mcastAddr, r.dispatch)
	}()
	go r.runAnnouncer(ctx, mcastAddr)
	debuglog.Logf(logComponent, "participant %s up: domain=%d mcast=%s meta=%s",
		r.Part.GUID, r.domainID, mcastAddr, r.metaAddr)

	select {
	case <-ctx.Done():
		r.announceGoodbye(mcastAddr)
		return nil
	case err := <-errCh:
		if err != nil {
			return err
		}
		r.announceGoodbye(mcastAddr)
		return nil
	}
}

// RunObserver joins the multicast group and applies announcements without
// ever announcing or opening the metatraffic listener. The CLI uses it to
// watch the graph passively.
func (r *Runner) RunObserver(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("missing runner")
	}
	defer r.Part.Close()
	r.observer = true
	return network.ListenMulticast(ctx, network.MulticastAddr(r.domainID), r.dispatch)
}

func (r *Runner) StartSnapshotWriter(interval time.Duration) {
	if r == nil || r.Metrics == nil || r.snapPath == "" {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = r.Metrics.WriteSnapshot(r.snapPath)
			case <-r.stopSnap:
				return
			}
		}
	}()
}

func (r *Runner) StopSnapshotWriter() {
	if r == nil {
		return
	}
	select {
	case r.stopSnap <- struct{}{}:
	default:
	}
}

// trackPeer records a participant's metatraffic address and reports
// whether the prefix is new to us.
func (r *Runner) trackPeer(prefix guid.Prefix, addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peerAddrs == nil {
		r.peerAddrs = make(map[guid.Prefix]string)
	}
	_, known := r.peerAddrs[prefix]
	r.peerAddrs[prefix] = addr
	return !known
}

func (r *Runner) forgetPeer(prefix guid.Prefix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peerAddrs, prefix)
}

func (r *Runner) peerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peerAddrs)
}

func announceInterval(configured time.Duration) time.Duration {
	if v, ok := envInt("ROSGRAPH_ANNOUNCE_INTERVAL_MS"); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	if configured > 0 {
		return configured
	}
	return defaultAnnounceInterval
}

func leaseTTL(configured time.Duration) time.Duration {
	if v, ok := envInt("ROSGRAPH_LEASE_SEC"); ok && v > 0 {
		return time.Duration(v) * time.Second
	}
	if configured > 0 {
		return configured
	}
	return 100 * time.Second
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
