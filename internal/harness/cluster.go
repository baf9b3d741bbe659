// Package harness is a test-only replacement for the teacher's simulated
// network controller: instead of replaying a scripted log of link up/down
// events against an offline topology, it spins up real Router instances
// talking real UDP over loopback, and lets a test kill one to exercise
// liveness-sweep failure detection the way the real daemon would see it.
//
// Every node in a Cluster is bound to its own 127.0.0.0/8 address so that
// node ids can be literal IPs, as spec.md's data model assumes, without
// needing distinct hosts.
package harness

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kprusa/roteador/internal/config"
	"github.com/kprusa/roteador/internal/daemon"
)

// Node is one running daemon in the cluster.
type Node struct {
	ID     string
	Router *daemon.Router
	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// Cluster is aware of every node it started — the one centralized actor in
// this package, used only by tests. A real deployment has no such thing:
// each daemon only knows its configured neighbors.
type Cluster struct {
	mu    sync.Mutex
	nodes map[string]*Node
	port  int
}

// NewCluster creates an empty cluster. All nodes share the same port
// number (distinguished by loopback IP instead), matching how this
// protocol's Endpoint model works: port usually defaults to the daemon's
// own listening port.
func NewCluster(port int) *Cluster {
	return &Cluster{nodes: make(map[string]*Node), port: port}
}

// Spawn starts a daemon bound to id (expected to be a 127.0.0.0/8 literal)
// with the given direct neighbors, and begins running it in the
// background. opts tune the timer subsystem down to test-friendly
// intervals; see FastIntervals.
func (c *Cluster) Spawn(t TestingT, id string, neighbors []config.NeighborSpec, opts ...daemon.Option) *Node {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(id), Port: c.port})
	if err != nil {
		t.Fatalf("listen %s: %v", id, err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	r := daemon.New(id, c.port, conn, log, opts...)
	r.Bootstrap(neighbors)

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{ID: id, Router: r, conn: conn, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(n.done)
		_ = r.Run(ctx)
	}()

	c.mu.Lock()
	c.nodes[id] = n
	c.mu.Unlock()
	return n
}

// Kill stops a node the way a dead process or severed link would: its
// socket goes away and nothing more is sent or received. Peers discover
// this only via the liveness sweep, same as spec.md's S3.
func (c *Cluster) Kill(id string) {
	c.mu.Lock()
	n, ok := c.nodes[id]
	delete(c.nodes, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	n.Router.Shutdown()
	n.cancel()
	<-n.done
}

// ShutdownAll stops every remaining node, for test cleanup.
func (c *Cluster) ShutdownAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.Kill(id)
	}
}

// TestingT is the subset of *testing.T this package needs, so it does not
// import "testing" into non-test code.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

// FastIntervals returns Router options with every timer sped up, so
// convergence/failure-detection scenarios run in test time instead of
// real-world seconds.
func FastIntervals() daemon.Option {
	return daemon.WithIntervals(
		150*time.Millisecond, // keepalive
		50*time.Millisecond,  // liveness sweep
		300*time.Millisecond, // liveness timeout
		10*time.Second,       // display (irrelevant to convergence, keep calm)
		10*time.Millisecond,  // settle delay
	)
}

// TableEntry is a simplified (metric, next hop) pair for assertions, keyed
// by destination in the maps EventualTable returns.
type TableEntry struct {
	Metric  int
	NextHop string
}

// EventualTable polls node's routing table snapshot until cond is
// satisfied or timeout elapses, returning the last snapshot either way.
func EventualTable(n *Node, timeout time.Duration, cond func(map[string]TableEntry) bool) (map[string]TableEntry, bool) {
	deadline := time.Now().Add(timeout)
	for {
		snap := snapshotMap(n)
		if cond(snap) {
			return snap, true
		}
		if time.Now().After(deadline) {
			return snap, false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func snapshotMap(n *Node) map[string]TableEntry {
	out := make(map[string]TableEntry)
	for _, rt := range n.Router.TableSnapshot() {
		out[rt.Destination] = TableEntry{Metric: rt.Metric, NextHop: rt.NextHop}
	}
	return out
}

// NeighborSpec is a convenience constructor matching config.NeighborSpec,
// always pointing at port so loopback-IP nodes need not repeat it.
func NeighborSpec(port int, ids ...string) []config.NeighborSpec {
	out := make([]config.NeighborSpec, len(ids))
	for i, id := range ids {
		out[i] = config.NeighborSpec{NodeID: id, Port: port}
	}
	return out
}
