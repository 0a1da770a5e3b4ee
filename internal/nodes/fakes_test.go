package nodes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

type fakeConn struct {
	id        string
	connected atomic.Bool
	closed    atomic.Int32

	mu   sync.Mutex
	subs map[int]func(NodeEvent)
	next int
}

func newFakeConn(id string) *fakeConn {
	c := &fakeConn{id: id, subs: make(map[int]func(NodeEvent))}
	c.connected.Store(true)
	return c
}

func (c *fakeConn) Connected() bool { return c.connected.Load() }

func (c *fakeConn) Subscribe(fn func(NodeEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.next
	c.next++
	c.subs[key] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, key)
		c.mu.Unlock()
	}
}

func (c *fakeConn) Close() { c.closed.Add(1) }

func (c *fakeConn) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *fakeConn) emit(ev NodeEvent) {
	c.mu.Lock()
	fns := make([]func(NodeEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type fakeConnector struct {
	mu    sync.Mutex
	fail  map[string]error
	block map[string]bool
	conns map[string]*fakeConn
	calls []string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		fail:  make(map[string]error),
		block: make(map[string]bool),
		conns: make(map[string]*fakeConn),
	}
}

func (f *fakeConnector) Connect(ctx context.Context, cfg NodeConfig) (Conn, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cfg.Identifier)
	err := f.fail[cfg.Identifier]
	block := f.block[cfg.Identifier]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn(cfg.Identifier)
	f.mu.Lock()
	f.conns[cfg.Identifier] = conn
	f.mu.Unlock()
	return conn, nil
}

func (f *fakeConnector) conn(id string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id]
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCatalog struct {
	mu       sync.Mutex
	nodes    []NodeDescriptor
	err      error
	calls    int
	excluded []map[string]struct{}
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeCatalog) FetchCandidates(ctx context.Context, excluding map[string]struct{}) ([]NodeDescriptor, error) {
	f.mu.Lock()
	f.calls++
	f.excluded = append(f.excluded, excluding)
	gate, entered := f.gate, f.entered
	nodes, err := f.nodes, f.err
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]NodeDescriptor, 0, len(nodes))
	for _, d := range nodes {
		if _, skip := excluding[d.Identifier]; skip {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func descriptor(id string, active int) NodeDescriptor {
	return NodeDescriptor{
		Identifier:         id,
		Host:               fmt.Sprintf("%s.example.net", id),
		Port:               2333,
		Password:           "youshallnotpass",
		Online:             true,
		Capabilities:       map[string]bool{"youtube": true, "soundcloud": true, "spotify": true},
		Load:               NodeLoad{ActiveSessions: active, TotalSessions: active, CPULoad: 0.1, SystemCPULoad: 0.2},
		UptimeSeconds:      3600,
		LastResponseTimeMs: 40,
	}
}

var errRefused = errors.New("connection refused")
