package daemon

import (
	"errors"

	"github.com/kprusa/roteador/internal/neighbor"
	"github.com/kprusa/roteador/internal/rlog"
	"github.com/kprusa/roteador/internal/wire"
)

// ErrNoRoute is returned by Send when there is no route to the requested
// destination.
var ErrNoRoute = errors.New("no route")

// Send originates a text message toward dst (§4.5's "Originate"). It is
// the command surface's entry point for "enviar".
func (r *Router) Send(dst, text string) error {
	r.mu.Lock()
	rt, ok := r.table.Lookup(dst)
	var ep neighbor.Endpoint
	if ok {
		ep, ok = r.neighbors.Endpoint(rt.NextHop)
	}
	r.mu.Unlock()

	if !ok {
		rlog.Event(r.log, rlog.EventError).Warnf("no route to %s", dst)
		return ErrNoRoute
	}

	r.sendAll([]outboundMsg{{ep: ep, data: wire.EncodeText(r.self, dst, text)}})
	return nil
}

// handleText implements §4.5's "Relay": a text message addressed to self
// is delivered (logged); otherwise it is re-transmitted byte-for-byte to
// the next hop, or dropped if there is no route. No TTL is maintained.
func (r *Router) handleText(msg wire.TextMessage, raw []byte) {
	if msg.Dst == r.self {
		rlog.Event(r.log, rlog.EventMessageRecv).Infof("from=%s dst=%s(you) text=%q", msg.Src, msg.Dst, msg.Text)
		return
	}

	r.mu.Lock()
	rt, ok := r.table.Lookup(msg.Dst)
	var ep neighbor.Endpoint
	if ok {
		ep, ok = r.neighbors.Endpoint(rt.NextHop)
	}
	r.mu.Unlock()

	if !ok {
		rlog.Event(r.log, rlog.EventError).Warnf("no route to %s, dropping message from %s", msg.Dst, msg.Src)
		return
	}

	rlog.Event(r.log, rlog.EventMessageRouted).Infof("from=%s dst=%s next_hop=%s text=%q", msg.Src, msg.Dst, rt.NextHop, msg.Text)
	r.sendAll([]outboundMsg{{ep: ep, data: raw}})
}
