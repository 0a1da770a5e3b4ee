package nodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, cfg ControllerConfig, catalog Catalog, connector Connector) *Controller {
	t.Helper()
	c := NewController(cfg, NewRegistry(), catalog, connector, quietLogger())
	t.Cleanup(c.Stop)
	return c
}

func manage(t *testing.T, c *Controller, connector *fakeConnector, d NodeDescriptor) {
	t.Helper()
	require.NoError(t, c.CommitNode(context.Background(), d))
	require.NotNil(t, connector.conn(d.Identifier))
}

func TestEnsureTargetFillsDeficitWithBestCandidates(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{
		descriptor("m1", 0),
		descriptor("m2", 0),
		descriptor("c-busy", 9),
		descriptor("c-idle", 1),
		descriptor("c-mid", 4),
	}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 3}, catalog, connector)
	manage(t, c, connector, descriptor("m1", 0))

	added, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, c.Registry().Size())
	for _, id := range []string{"m1", "m2", "c-idle"} {
		assert.True(t, c.Registry().Contains(id), id)
	}
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.True(t, c.Ready())
}

// Five directory entries, two of them already in use, one node registered
// locally: the two least busy of the remaining three are added.
func TestEnsureTargetScenarioFiveCandidates(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{
		descriptor("managed-a", 0),
		descriptor("managed-b", 0),
		descriptor("free-3", 3),
		descriptor("free-1", 1),
		descriptor("free-2", 2),
	}}
	excluding := &excludingCatalog{Catalog: catalog, extra: map[string]struct{}{"managed-b": {}}}
	c := newTestController(t, ControllerConfig{Target: 3}, excluding, newFakeConnector())
	require.NoError(t, c.Registry().Add(NewManagedNode("managed-a", "a:1", newFakeConn("managed-a"))))

	added, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, c.Registry().Size())
	assert.True(t, c.Registry().Contains("free-1"))
	assert.True(t, c.Registry().Contains("free-2"))
	assert.False(t, c.Registry().Contains("free-3"))
	assert.False(t, c.Registry().Contains("managed-b"))
}

type excludingCatalog struct {
	Catalog
	extra map[string]struct{}
}

func (e *excludingCatalog) FetchCandidates(ctx context.Context, excluding map[string]struct{}) ([]NodeDescriptor, error) {
	merged := make(map[string]struct{}, len(excluding)+len(e.extra))
	for id := range excluding {
		merged[id] = struct{}{}
	}
	for id := range e.extra {
		merged[id] = struct{}{}
	}
	return e.Catalog.FetchCandidates(ctx, merged)
}

func TestEnsureTargetExcludesManagedIdentifiers(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("a", 0), descriptor("b", 0)}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 2}, catalog, connector)
	manage(t, c, connector, descriptor("a", 0))

	_, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)

	require.Len(t, catalog.excluded, 1)
	assert.Contains(t, catalog.excluded[0], "a")
	assert.Equal(t, 2, c.Registry().Size())
}

func TestEnsureTargetNoDeficit(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("a", 0)}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 1}, catalog, connector)
	manage(t, c, connector, descriptor("a", 0))

	added, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, catalog.callCount())
}

func TestEnsureTargetZeroTarget(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("a", 0)}}
	c := newTestController(t, ControllerConfig{Target: 0}, catalog, newFakeConnector())

	added, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Zero(t, c.Registry().Size())
}

func TestEnsureTargetNeverExceedsTarget(t *testing.T) {
	for target := 0; target <= 4; target++ {
		for managed := 0; managed <= target; managed++ {
			catalog := &fakeCatalog{}
			for i := range 6 {
				catalog.nodes = append(catalog.nodes, descriptor(string(rune('a'+i)), i))
			}
			connector := newFakeConnector()
			c := NewController(ControllerConfig{Target: target}, NewRegistry(), catalog, connector, quietLogger())
			for i := range managed {
				require.NoError(t, c.CommitNode(context.Background(), descriptor(string(rune('a'+i)), i)))
			}

			before := c.Registry().Size()
			_, _ = c.EnsureTarget(context.Background())
			after := c.Registry().Size()
			assert.LessOrEqual(t, after, target)
			assert.GreaterOrEqual(t, after, before)
			assert.Equal(t, target, after)
			c.Stop()
		}
	}
}

func TestEnsureTargetCatalogTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	catalog := NewHTTPCatalog(srv.URL, nil, 50*time.Millisecond, quietLogger())
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 3}, catalog, connector)
	manage(t, c, connector, descriptor("a", 0))

	added, err := c.EnsureTarget(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Zero(t, added)
	assert.Equal(t, 1, c.Registry().Size())
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.False(t, c.running.Load())
}

func TestEnsureTargetNoSuitableNodes(t *testing.T) {
	c := newTestController(t, ControllerConfig{Target: 2}, &fakeCatalog{}, newFakeConnector())

	added, err := c.EnsureTarget(context.Background())
	assert.ErrorIs(t, err, ErrNoSuitableNodes)
	assert.Zero(t, added)
	assert.False(t, c.Ready())
}

func TestEnsureTargetSkipsFailedRegistration(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("bad", 0), descriptor("good", 1)}}
	connector := newFakeConnector()
	connector.fail["bad"] = errRefused
	c := newTestController(t, ControllerConfig{Target: 2}, catalog, connector)

	added, err := c.EnsureTarget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, c.Registry().Contains("good"))
	assert.False(t, c.Registry().Contains("bad"))
	assert.Equal(t, 2, connector.callCount())
}

func TestCommitNodeErrors(t *testing.T) {
	connector := newFakeConnector()
	connector.fail["bad"] = errRefused
	c := newTestController(t, ControllerConfig{Target: 3}, &fakeCatalog{}, connector)

	err := c.CommitNode(context.Background(), descriptor("bad", 0))
	require.ErrorIs(t, err, ErrNodeRegistrationFailed)
	assert.Zero(t, c.Registry().Size())

	manage(t, c, connector, descriptor("ok", 0))
	err = c.CommitNode(context.Background(), descriptor("ok", 0))
	require.ErrorIs(t, err, ErrDuplicateNode)
	assert.Equal(t, 1, c.Registry().Size())
}

func TestCommitNodeConnectTimeout(t *testing.T) {
	connector := newFakeConnector()
	connector.block["stuck"] = true
	c := newTestController(t, ControllerConfig{Target: 1, ConnectTimeout: 30 * time.Millisecond}, &fakeCatalog{}, connector)

	start := time.Now()
	err := c.CommitNode(context.Background(), descriptor("stuck", 0))
	require.ErrorIs(t, err, ErrNodeRegistrationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, c.Registry().Size())
}

func TestEnsureTargetSingleFlight(t *testing.T) {
	catalog := &fakeCatalog{
		nodes:   []NodeDescriptor{descriptor("a", 0), descriptor("b", 1)},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := newTestController(t, ControllerConfig{Target: 2}, catalog, newFakeConnector())

	type result struct {
		added int
		err   error
	}
	first := make(chan result, 1)
	go func() {
		added, err := c.EnsureTarget(context.Background())
		first <- result{added, err}
	}()

	<-catalog.entered
	assert.Equal(t, PhaseFetching, c.Phase())

	added, err := c.EnsureTarget(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)
	assert.Zero(t, added)

	close(catalog.gate)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.added)
	assert.Equal(t, 2, c.Registry().Size())
	// the coalesced request re-evaluated once and found no deficit
	assert.Equal(t, 1, catalog.callCount())
	assert.False(t, c.running.Load())
}

func TestHandleNodeFaultDebouncesDuplicates(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("b", 1)}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 1, FaultDelay: 40 * time.Millisecond}, catalog, connector)

	manage(t, c, connector, descriptor("a", 0))
	conn := connector.conn("a")
	conn.connected.Store(false)

	conn.emit(NodeEvent{Type: NodeErrored, Err: errRefused})
	conn.emit(NodeEvent{Type: NodeDisconnected})
	c.HandleNodeFault("a")

	assert.True(t, c.Registry().Contains("a"), "removal waits for the fault delay")

	require.Eventually(t, func() bool {
		return !c.Registry().Contains("a") && c.Registry().Contains("b")
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), conn.closed.Load())
	assert.Equal(t, 0, conn.subscribers())
	assert.Equal(t, 1, catalog.callCount())
	assert.Equal(t, 1, c.Registry().Size())
}

func TestHandleNodeFaultCancelledByReconnect(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("b", 1)}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 1, FaultDelay: 50 * time.Millisecond}, catalog, connector)

	manage(t, c, connector, descriptor("a", 0))
	conn := connector.conn("a")

	conn.emit(NodeEvent{Type: NodeDisconnected})
	conn.emit(NodeEvent{Type: NodeConnected})

	time.Sleep(150 * time.Millisecond)
	assert.True(t, c.Registry().Contains("a"))
	assert.Zero(t, conn.closed.Load())
	assert.Zero(t, catalog.callCount())
}

func TestHandleNodeFaultStaleIdentifier(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("b", 1)}}
	c := newTestController(t, ControllerConfig{Target: 1, FaultDelay: 10 * time.Millisecond}, catalog, newFakeConnector())

	c.HandleNodeFault("ghost")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, catalog.callCount())
	assert.Zero(t, c.Registry().Size())
}

func TestPeriodicSweepReplacesDisconnected(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("b", 1), descriptor("c", 2)}}
	connector := newFakeConnector()
	c := newTestController(t, ControllerConfig{Target: 2, FaultDelay: 20 * time.Millisecond}, catalog, connector)

	manage(t, c, connector, descriptor("a", 0))
	manage(t, c, connector, descriptor("b", 1))
	connector.conn("a").connected.Store(false)

	c.PeriodicSweep(context.Background())
	assert.Equal(t, 2, c.Registry().Size(), "no deficit until the fault resolves")

	require.Eventually(t, func() bool {
		return c.Registry().Contains("b") && c.Registry().Contains("c") && !c.Registry().Contains("a")
	}, time.Second, 10*time.Millisecond)
}

func TestStartRunsInitialSweep(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("a", 0), descriptor("b", 1)}}
	connector := newFakeConnector()
	c := NewController(ControllerConfig{
		Target:        2,
		InitialDelay:  10 * time.Millisecond,
		SweepInterval: time.Hour,
	}, NewRegistry(), catalog, connector, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.Eventually(t, c.Ready, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Registry().Size() == 2 }, time.Second, 10*time.Millisecond)

	statuses := c.Nodes()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Identifier)
	assert.True(t, statuses[0].Connected)

	a := connector.conn("a")
	c.Stop()
	assert.Zero(t, c.Registry().Size())
	assert.Equal(t, int32(1), a.closed.Load())

	// faults after shutdown are ignored
	c.HandleNodeFault("a")
}

func TestRefreshUsesSingleFlightGuard(t *testing.T) {
	catalog := &fakeCatalog{nodes: []NodeDescriptor{descriptor("a", 0)}}
	c := newTestController(t, ControllerConfig{Target: 1}, catalog, newFakeConnector())

	c.running.Store(true)
	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)
	c.running.Store(false)

	added, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "fetching", PhaseFetching.String())
	assert.Equal(t, "selecting", PhaseSelecting.String())
	assert.Equal(t, "applying", PhaseApplying.String())
}
