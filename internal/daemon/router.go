// Package daemon implements the routing daemon's core: the receive loop,
// the convergence logic that mutates the routing table on join and vector
// messages, the timer subsystem, and the forwarding plane for user text
// messages. It is the concurrent heart of the system: a single coarse
// mutex guards the routing table, the neighbor registry, and the known
// endpoints together, and every compound operation computes its outbound
// sends under that lock, releases it, and only then performs I/O.
package daemon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/kprusa/roteador/internal/config"
	"github.com/kprusa/roteador/internal/neighbor"
	"github.com/kprusa/roteador/internal/rlog"
	"github.com/kprusa/roteador/internal/route"
	"github.com/kprusa/roteador/internal/wire"
)

// Default timer values, per spec.
const (
	DefaultKeepaliveInterval = 10 * time.Second
	DefaultLivenessInterval  = 5 * time.Second
	DefaultLivenessTimeout   = 15 * time.Second
	DefaultDisplayInterval   = 30 * time.Second
	DefaultSettleDelay       = 1 * time.Second
	readDeadline             = 1 * time.Second
)

// outboundMsg is a (destination, bytes) pair computed under the lock and
// sent after it is released, per the two-phase I/O discipline.
type outboundMsg struct {
	ep   neighbor.Endpoint
	data []byte
}

// Router is a single node of the overlay: its routing table, its direct
// neighbors, and the datagram socket it speaks the wire protocol over.
type Router struct {
	self string
	port int

	mu        sync.Mutex
	table     *route.Table
	neighbors *neighbor.Set

	conn net.PacketConn
	log  logrus.FieldLogger

	keepaliveInterval time.Duration
	livenessInterval  time.Duration
	livenessTimeout   time.Duration
	displayInterval   time.Duration
	settleDelay       time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Option configures a Router at construction time. Only tests reach for
// these; production wiring always uses the defaults the spec names.
type Option func(*Router)

// WithIntervals overrides the timer subsystem's periods, for tests that
// cannot wait real-world seconds for convergence.
func WithIntervals(keepalive, liveness, timeout, display, settle time.Duration) Option {
	return func(r *Router) {
		r.keepaliveInterval = keepalive
		r.livenessInterval = liveness
		r.livenessTimeout = timeout
		r.displayInterval = display
		r.settleDelay = settle
	}
}

// New creates a Router bound to conn. The caller owns conn and closes it
// once Run has returned; Shutdown also closes it.
func New(self string, port int, conn net.PacketConn, log logrus.FieldLogger, opts ...Option) *Router {
	r := &Router{
		self:              self,
		port:              port,
		table:             route.New(self),
		neighbors:         neighbor.New(),
		conn:              conn,
		log:               log,
		keepaliveInterval: DefaultKeepaliveInterval,
		livenessInterval:  DefaultLivenessInterval,
		livenessTimeout:   DefaultLivenessTimeout,
		displayInterval:   DefaultDisplayInterval,
		settleDelay:       DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bootstrap seeds the neighbor registry and routing table with the direct
// neighbors from a loaded configuration: metric 1, next hop the neighbor
// itself, per spec.md §3's lifecycle rule for direct neighbors.
func (r *Router) Bootstrap(neighbors []config.NeighborSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range neighbors {
		ep := neighbor.Endpoint{NodeID: n.NodeID, Port: n.Port}
		r.neighbors.Add(n.NodeID, ep)
		r.table.Upsert(n.NodeID, 1, n.NodeID)
	}
}

// Self returns the daemon's own node id.
func (r *Router) Self() string { return r.self }

// TableSnapshot returns the routing table's routes, ordered by destination,
// for display. The snapshot is taken under the lock.
func (r *Router) TableSnapshot() []route.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Snapshot()
}

// Run starts the receive loop and the three timers, sends the initial
// join announcements after the settle delay, and blocks until ctx is
// canceled. It aggregates every task's shutdown error with go-multierror
// rather than returning only the first.
func (r *Router) Run(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	var errs error
	var errMu sync.Mutex
	collect := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		errs = multierror.Append(errs, err)
		errMu.Unlock()
	}

	r.wg.Add(4)
	go func() { defer r.wg.Done(); collect(r.receiveLoop(ctx)) }()
	go func() { defer r.wg.Done(); collect(r.keepaliveLoop(ctx)) }()
	go func() { defer r.wg.Done(); collect(r.livenessLoop(ctx)) }()
	go func() { defer r.wg.Done(); collect(r.displayLoop(ctx)) }()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-time.After(r.settleDelay):
			r.announceJoin()
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	r.wg.Wait()
	return errs
}

// Shutdown stops every task within ≤1 second: it cancels the context Run
// is waiting on and closes the socket, unblocking the receive loop's
// blocking read immediately.
func (r *Router) Shutdown() {
	if r.cancel != nil {
		r.cancel()
	}
	_ = r.conn.Close()
}

// sendAll performs the outbound I/O for a batch of messages computed
// under the lock. Send failures are logged and not retried — the next
// periodic keepalive effectively retries.
func (r *Router) sendAll(msgs []outboundMsg) {
	for _, m := range msgs {
		addr := &net.UDPAddr{IP: net.ParseIP(m.ep.NodeID), Port: m.ep.Port}
		if addr.IP == nil {
			// Node ids are opaque; when they are not IP literals (e.g. in
			// tests) resolve by name instead.
			resolved, err := net.ResolveUDPAddr("udp", m.ep.NodeID)
			if err != nil {
				rlog.Event(r.log, rlog.EventError).Warnf("resolve endpoint %s: %v", m.ep.NodeID, err)
				continue
			}
			addr = &net.UDPAddr{IP: resolved.IP, Port: m.ep.Port, Zone: resolved.Zone}
		}
		if _, err := r.conn.WriteTo(m.data, addr); err != nil {
			rlog.Event(r.log, rlog.EventError).Warnf("send to %s:%d: %v", m.ep.NodeID, m.ep.Port, err)
		}
	}
}

// announceJoin sends one join announce to every configured neighbor, per
// the initial-join rule (§4.4.6).
func (r *Router) announceJoin() {
	r.mu.Lock()
	msgs := make([]outboundMsg, 0, len(r.neighbors.All()))
	for _, nid := range r.neighbors.All() {
		ep, ok := r.neighbors.Endpoint(nid)
		if !ok {
			continue
		}
		msgs = append(msgs, outboundMsg{ep: ep, data: wire.EncodeJoin(r.self)})
	}
	r.mu.Unlock()
	r.sendAll(msgs)
	for _, m := range msgs {
		rlog.Event(r.log, rlog.EventAnnounce).Infof("announced %s to %s:%d", r.self, m.ep.NodeID, m.ep.Port)
	}
}

// broadcastAll sends the split-horizon vector to every neighbor, skipping
// neighbors for whom the vector is empty (a keepalive still reaches them
// via the join announce on the next periodic tick).
func (r *Router) broadcastAll() {
	r.mu.Lock()
	var msgs []outboundMsg
	for _, nid := range r.neighbors.All() {
		entries := r.table.Advertisable(nid)
		if len(entries) == 0 {
			continue
		}
		ep, ok := r.neighbors.Endpoint(nid)
		if !ok {
			continue
		}
		msgs = append(msgs, outboundMsg{ep: ep, data: wire.EncodeVector(toWireEntries(entries))})
	}
	r.mu.Unlock()
	r.sendAll(msgs)
}

func toWireEntries(in []route.VectorEntry) []wire.VectorEntry {
	out := make([]wire.VectorEntry, len(in))
	for i, e := range in {
		out[i] = wire.VectorEntry{Dst: e.Dst, Metric: e.Metric}
	}
	return out
}
