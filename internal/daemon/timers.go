package daemon

import (
	"context"
	"time"

	"github.com/kprusa/roteador/internal/rlog"
	"github.com/kprusa/roteador/internal/wire"
)

// keepaliveLoop implements §4.4.5: every keepaliveInterval, send a join
// announce to every neighbor, plus a vector advertisement if non-empty.
func (r *Router) keepaliveLoop(ctx context.Context) error {
	t := time.NewTicker(r.keepaliveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.sendKeepalive()
		}
	}
}

func (r *Router) sendKeepalive() {
	r.mu.Lock()
	var msgs []outboundMsg
	for _, nid := range r.neighbors.All() {
		ep, ok := r.neighbors.Endpoint(nid)
		if !ok {
			continue
		}
		msgs = append(msgs, outboundMsg{ep: ep, data: wire.EncodeJoin(r.self)})
		if entries := r.table.Advertisable(nid); len(entries) > 0 {
			msgs = append(msgs, outboundMsg{ep: ep, data: wire.EncodeVector(toWireEntries(entries))})
		}
	}
	r.mu.Unlock()
	r.sendAll(msgs)
}

// livenessLoop implements §4.4.4: every livenessInterval, declare any
// neighbor silent for more than livenessTimeout as failed, purge routes
// through it, and drop it. The resulting table change is not broadcast
// immediately; it surfaces on the next keepalive.
func (r *Router) livenessLoop(ctx context.Context) error {
	t := time.NewTicker(r.livenessInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.sweepFailures()
		}
	}
}

func (r *Router) sweepFailures() {
	r.mu.Lock()
	dead := r.neighbors.Stale(r.livenessTimeout)
	for _, nid := range dead {
		r.table.PurgeThrough(nid)
		r.neighbors.Drop(nid)
	}
	r.mu.Unlock()

	for _, nid := range dead {
		rlog.Event(r.log, rlog.EventFailureFound).Infof("neighbor %s inactive (no messages for %s)", nid, r.livenessTimeout)
	}
}

// displayLoop implements the 30-second periodic table dump.
func (r *Router) displayLoop(ctx context.Context) error {
	t := time.NewTicker(r.displayInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.logTable()
		}
	}
}

func (r *Router) logTable() {
	snap := r.TableSnapshot()
	entry := r.log.WithField("event", "[TABELA]").WithField("time", timeNow().Format("15:04:05"))
	entry.Infof("%d routes", len(snap))
	for _, rt := range snap {
		entry.Infof("  %-20s metric=%-4d next_hop=%s", rt.Destination, rt.Metric, rt.NextHop)
	}
}
