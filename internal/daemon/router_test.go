package daemon

import (
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kprusa/roteador/internal/config"
	"github.com/kprusa/roteador/internal/neighbor"
	"github.com/kprusa/roteador/internal/wire"
)

func testRouter(t *testing.T, self string) *Router {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(self, conn.LocalAddr().(*net.UDPAddr).Port, conn, log)
}

func TestBootstrap_seedsDirectNeighbors(t *testing.T) {
	r := testRouter(t, "A")
	r.Bootstrap([]config.NeighborSpec{{NodeID: "B", Port: 6000}})

	rt, ok := r.table.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
	assert.True(t, r.neighbors.Has("B"))
}

func TestHandleJoin_newNeighborInstalledAtMetricOne(t *testing.T) {
	r := testRouter(t, "A")
	r.handleJoin("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})

	rt, ok := r.table.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
	assert.True(t, r.neighbors.Has("B"))
}

func TestHandleJoin_fromSelfIgnored(t *testing.T) {
	r := testRouter(t, "A")
	r.handleJoin("A", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	assert.False(t, r.neighbors.Has("A"))
	_, ok := r.table.Lookup("A")
	assert.False(t, ok)
}

func TestHandleJoin_demotesHigherMetricToOne(t *testing.T) {
	r := testRouter(t, "A")
	r.table.Upsert("B", 3, "C")
	r.neighbors.Add("C", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})

	r.handleJoin("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9998})

	rt, ok := r.table.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
}

func TestHandleVector_installsNewRouteWithIncrementedMetric(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.table.Upsert("B", 1, "B")

	r.handleVector("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999}, []wire.VectorEntry{
		{Dst: "C", Metric: 1},
	})

	rt, ok := r.table.Lookup("C")
	require.True(t, ok)
	assert.Equal(t, 2, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
}

func TestHandleVector_selfDestinationSkipped(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})

	r.handleVector("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999}, []wire.VectorEntry{
		{Dst: "A", Metric: 1},
	})

	_, ok := r.table.Lookup("A")
	assert.False(t, ok)
}

func TestHandleVector_strictlyBetterMetricReplaces(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.neighbors.Add("C", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9998})
	r.table.Upsert("D", 5, "B")

	r.handleVector("C", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9998}, []wire.VectorEntry{
		{Dst: "D", Metric: 1},
	})

	rt, ok := r.table.Lookup("D")
	require.True(t, ok)
	assert.Equal(t, 2, rt.Metric)
	assert.Equal(t, "C", rt.NextHop)
}

// B2: a candidate equal to the current metric via a different next hop
// leaves the table unchanged.
func TestHandleVector_equalMetricViaDifferentNextHopUnchanged(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.neighbors.Add("C", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9998})
	r.table.Upsert("D", 2, "B")

	r.handleVector("C", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9998}, []wire.VectorEntry{
		{Dst: "D", Metric: 1},
	})

	rt, ok := r.table.Lookup("D")
	require.True(t, ok)
	assert.Equal(t, 2, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
}

// B3: a neighbor reachable at metric 1 does not get demoted by a
// subsequent advertisement, from a different neighbor, claiming a higher
// metric to it.
func TestHandleVector_directNeighborNotDemotedByThirdPartyClaim(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.neighbors.Add("Y", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9997})
	r.table.Upsert("B", 1, "B")

	r.handleVector("Y", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9997}, []wire.VectorEntry{
		{Dst: "B", Metric: 3},
	})

	rt, ok := r.table.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, 1, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
}

// Worse-metric acceptance via the SAME next hop: §4.4.2's design-intent
// behavior, this implementation's chosen policy (see DESIGN.md).
func TestHandleVector_acceptsWorseMetricFromSameNextHop(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.table.Upsert("D", 2, "B")

	r.handleVector("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999}, []wire.VectorEntry{
		{Dst: "D", Metric: 5},
	})

	rt, ok := r.table.Lookup("D")
	require.True(t, ok)
	assert.Equal(t, 6, rt.Metric)
	assert.Equal(t, "B", rt.NextHop)
}

func TestHandleVector_implicitWithdrawal(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.table.Upsert("D", 3, "B")

	r.handleVector("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999}, []wire.VectorEntry{
		{Dst: "E", Metric: 1},
	})

	_, ok := r.table.Lookup("D")
	assert.False(t, ok, "D should be withdrawn: B stopped advertising it")
	rt, ok := r.table.Lookup("E")
	require.True(t, ok)
	assert.Equal(t, 2, rt.Metric)
}

func TestSweepFailures_purgesAndDrops(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.table.Upsert("B", 1, "B")
	r.table.Upsert("C", 2, "B")

	r.livenessTimeout = -1 // force immediate staleness regardless of elapsed time
	r.sweepFailures()

	assert.False(t, r.neighbors.Has("B"))
	_, ok := r.table.Lookup("B")
	assert.False(t, ok)
	_, ok = r.table.Lookup("C")
	assert.False(t, ok)
}

func TestSend_noRoute(t *testing.T) {
	r := testRouter(t, "A")
	err := r.Send("Z", "hello")
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSend_knownRoute(t *testing.T) {
	r := testRouter(t, "A")
	r.neighbors.Add("B", neighbor.Endpoint{NodeID: "127.0.0.1", Port: 9999})
	r.table.Upsert("C", 2, "B")
	err := r.Send("C", "hello")
	assert.NoError(t, err)
}
