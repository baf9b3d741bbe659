package daemon

import (
	"context"
	"errors"
	"net"

	"github.com/kprusa/roteador/internal/neighbor"
	"github.com/kprusa/roteador/internal/rlog"
	"github.com/kprusa/roteador/internal/wire"
)

// receiveLoop reads datagrams until ctx is canceled, dispatching each by
// message kind. The read deadline is bounded so cancellation is observed
// promptly even though nothing may ever arrive (§5's suspension-point
// rule).
func (r *Router) receiveLoop(ctx context.Context) error {
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = r.conn.SetReadDeadline(timeNow().Add(readDeadline))
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			rlog.Event(r.log, rlog.EventError).Warnf("receive: %v", err)
			continue
		}

		body := make([]byte, n)
		copy(body, buf[:n])
		r.dispatch(body, addr)
	}
}

func (r *Router) dispatch(body []byte, addr net.Addr) {
	host, port := splitHostPort(addr)

	switch wire.Classify(body) {
	case wire.KindJoin:
		r.handleJoin(wire.DecodeJoin(body), neighbor.Endpoint{NodeID: host, Port: port})
	case wire.KindVector:
		r.handleVector(host, neighbor.Endpoint{NodeID: host, Port: port}, wire.DecodeVector(body))
	case wire.KindText:
		if msg, ok := wire.DecodeText(body); ok {
			r.handleText(msg, body)
		}
	default:
		rlog.Event(r.log, rlog.EventError).Warnf("unrecognized datagram from %s", host)
	}
}

// handleJoin implements §4.4.1: processing a join announce from X.
func (r *Router) handleJoin(x string, observed neighbor.Endpoint) {
	if x == r.self {
		return
	}

	r.mu.Lock()
	r.neighbors.NoteActivity(x, observed)

	changed := false
	var logEvent, logMsg string
	cur, ok := r.table.Lookup(x)
	switch {
	case !ok:
		r.table.Upsert(x, 1, x)
		changed = true
		logEvent, logMsg = rlog.EventNewRoute, x+" via "+x+" (metric: 1)"
	case cur.Metric > 1:
		r.table.Upsert(x, 1, x)
		changed = true
		logEvent, logMsg = rlog.EventRouteImproved, x+": "+itoa(cur.Metric)+" -> 1 via "+x
	}

	ep, _ := r.neighbors.Endpoint(x)
	reply := outboundMsg{ep: ep, data: wire.EncodeVector(toWireEntries(r.table.Advertisable(x)))}

	var broadcast []outboundMsg
	if changed {
		broadcast = r.computeBroadcast()
	}
	r.mu.Unlock()

	if changed {
		rlog.Event(r.log, logEvent).Info(logMsg)
	}
	if len(reply.data) > 0 {
		r.sendAll([]outboundMsg{reply})
	}
	r.sendAll(broadcast)
}

// handleVector implements §4.4.2: processing a vector advertisement from x,
// including implicit withdrawal.
func (r *Router) handleVector(x string, observed neighbor.Endpoint, entries []wire.VectorEntry) {
	r.mu.Lock()
	r.neighbors.NoteActivity(x, observed)

	changed := false
	advertised := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Dst == r.self {
			continue
		}
		advertised[e.Dst] = true
		candidate := e.Metric + 1

		cur, ok := r.table.Lookup(e.Dst)
		switch {
		case !ok:
			r.table.Upsert(e.Dst, candidate, x)
			changed = true
			rlog.Event(r.log, rlog.EventNewRoute).Infof("%s via %s (metric: %d)", e.Dst, x, candidate)
		case candidate < cur.Metric:
			rlog.Event(r.log, rlog.EventRouteImproved).Infof("%s: %d -> %d via %s", e.Dst, cur.Metric, candidate, x)
			r.table.Upsert(e.Dst, candidate, x)
			changed = true
		case cur.NextHop == x && candidate != cur.Metric:
			// Accept the new metric even if it is worse: the link through
			// the current next hop degraded. See DESIGN.md for this
			// choice over the strictly-smaller-only alternative.
			r.table.Upsert(e.Dst, candidate, x)
			changed = true
		}
	}

	// Implicit withdrawal: routes via x no longer listed by x (and not x
	// itself) are gone.
	for _, rt := range r.table.Snapshot() {
		if rt.NextHop == x && rt.Destination != x && !advertised[rt.Destination] {
			r.table.Remove(rt.Destination)
			changed = true
			rlog.Event(r.log, rlog.EventRouteRemoved).Infof("%s (no longer advertised by %s)", rt.Destination, x)
		}
	}

	var broadcast []outboundMsg
	if changed {
		broadcast = r.computeBroadcast()
	}
	r.mu.Unlock()

	r.sendAll(broadcast)
}

// computeBroadcast must be called with r.mu held: it computes the
// split-horizon vector for every neighbor, to be sent after the lock is
// released.
func (r *Router) computeBroadcast() []outboundMsg {
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
	return msgs
}
