package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTarget         = 3
	DefaultFaultDelay     = 5 * time.Second
	DefaultSweepInterval  = 5 * time.Minute
	DefaultInitialDelay   = 5 * time.Second
	DefaultConnectTimeout = 15 * time.Second
)

// Phase is the step a target-seeking cycle is in.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseSelecting
	PhaseApplying
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseSelecting:
		return "selecting"
	case PhaseApplying:
		return "applying"
	default:
		return "idle"
	}
}

type ControllerConfig struct {
	Target         int
	FaultDelay     time.Duration
	SweepInterval  time.Duration
	InitialDelay   time.Duration
	ConnectTimeout time.Duration
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.Target < 0 {
		c.Target = 0
	}
	if c.FaultDelay <= 0 {
		c.FaultDelay = DefaultFaultDelay
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

type pendingFault struct {
	timer *time.Timer
}

// Controller keeps the registry at its target size using the catalog as the
// source of candidates and the connector as the actuator.
type Controller struct {
	cfg       ControllerConfig
	registry  *Registry
	catalog   Catalog
	connector Connector
	log       *slog.Logger

	running atomic.Bool
	rerun   atomic.Bool
	phase   atomic.Int32

	faultMu sync.Mutex
	pending map[string]*pendingFault
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(cfg ControllerConfig, registry *Registry, catalog Catalog, connector Connector, log *slog.Logger) *Controller {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:       cfg.withDefaults(),
		registry:  registry,
		catalog:   catalog,
		connector: connector,
		log:       log.With("component", "nodes"),
		pending:   make(map[string]*pendingFault),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Controller) Registry() *Registry { return c.registry }

func (c *Controller) Target() int { return c.cfg.Target }

func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

// Ready reports whether at least one node is managed.
func (c *Controller) Ready() bool { return c.registry.Size() > 0 }

func (c *Controller) Nodes() []NodeStatus {
	out := make([]NodeStatus, 0, c.registry.Size())
	for n := range c.registry.All() {
		out = append(out, NodeStatus{
			Identifier:   n.Identifier,
			Address:      n.Address,
			Connected:    n.Connected(),
			ManagedSince: n.ManagedSince,
		})
	}
	return out
}

// Refresh runs a cycle on behalf of an operator.
func (c *Controller) Refresh(ctx context.Context) (int, error) {
	c.log.Info("manual node refresh requested")
	return c.EnsureTarget(ctx)
}

// EnsureTarget fills the registry up to the target size. Only one cycle runs
// at a time; a request that arrives during a cycle returns ErrCycleInFlight
// and makes the running cycle re-evaluate the deficit before it finishes.
func (c *Controller) EnsureTarget(ctx context.Context) (int, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.rerun.Store(true)
		return 0, ErrCycleInFlight
	}

	total := 0
	for {
		added, err := c.guardedCycle(ctx)
		total += added
		if ctx.Err() != nil || !c.rerun.Load() || !c.running.CompareAndSwap(false, true) {
			return total, err
		}
	}
}

func (c *Controller) guardedCycle(ctx context.Context) (int, error) {
	defer func() {
		c.phase.Store(int32(PhaseIdle))
		c.running.Store(false)
	}()
	c.rerun.Store(false)
	return c.cycle(ctx)
}

func (c *Controller) cycle(ctx context.Context) (int, error) {
	cycleID := uuid.NewString()
	log := c.log.With("cycle_id", cycleID)

	deficit := c.cfg.Target - c.registry.Size()
	if deficit <= 0 {
		return 0, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "nodes.cycle", trace.WithAttributes(
		attribute.String("cycle.id", cycleID),
		attribute.Int("cycle.deficit", deficit),
	))
	defer span.End()

	c.phase.Store(int32(PhaseFetching))
	candidates, err := c.catalog.FetchCandidates(ctx, c.registry.IDs())
	if err != nil {
		log.Warn("node catalog unavailable", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		return 0, err
	}

	c.phase.Store(int32(PhaseSelecting))
	picked := Select(candidates, deficit)
	if len(picked) == 0 {
		log.Warn("no suitable nodes in catalog", "deficit", deficit)
		span.SetStatus(codes.Error, "no suitable nodes")
		return 0, ErrNoSuitableNodes
	}

	c.phase.Store(int32(PhaseApplying))
	added := 0
	for _, d := range picked {
		if ctx.Err() != nil {
			break
		}
		if err := c.CommitNode(ctx, d); err != nil {
			log.Warn("node not committed", "node", d.Identifier, "address", d.Address(), "error", err)
			continue
		}
		added++
	}

	span.SetAttributes(attribute.Int("cycle.added", added))
	log.Info("node cycle finished",
		"deficit", deficit,
		"candidates", len(candidates),
		"added", added,
		"managed", c.registry.Size(),
	)
	return added, nil
}

// CommitNode opens a connection for d, subscribes to its lifecycle events and
// registers it. A failed connection is discarded without retrying.
func (c *Controller) CommitNode(ctx context.Context, d NodeDescriptor) error {
	if c.registry.Contains(d.Identifier) {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, d.Identifier)
	}

	conn, err := c.connect(ctx, d.Config())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNodeRegistrationFailed, d.Identifier, err)
	}

	node := NewManagedNode(d.Identifier, d.Address(), conn)
	id := d.Identifier
	node.attach(conn.Subscribe(func(ev NodeEvent) {
		c.onNodeEvent(id, ev)
	}))

	if err := c.registry.Add(node); err != nil {
		node.Destroy()
		return err
	}

	c.log.Info("node committed", "node", id, "address", node.Address)
	return nil
}

// connect bounds the connector call even when the connector ignores ctx.
// A connection that arrives after the deadline is closed.
func (c *Controller) connect(ctx context.Context, cfg NodeConfig) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := c.connector.Connect(ctx, cfg)
		done <- result{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.conn == nil {
			return nil, errors.New("connector returned no connection")
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Controller) onNodeEvent(id string, ev NodeEvent) {
	switch ev.Type {
	case NodeConnected:
		if c.cancelFault(id) {
			c.log.Info("node recovered before fault delay", "node", id)
		}
	case NodeErrored, NodeDisconnected:
		c.log.Warn("node fault reported", "node", id, "event", string(ev.Type), "error", ev.Err)
		c.HandleNodeFault(id)
	}
}

// HandleNodeFault schedules removal of id after the fault delay. Repeated
// faults for the same id while one is pending are ignored.
func (c *Controller) HandleNodeFault(id string) {
	c.faultMu.Lock()
	defer c.faultMu.Unlock()

	if c.stopped {
		return
	}
	if _, ok := c.pending[id]; ok {
		return
	}

	p := &pendingFault{}
	c.wg.Add(1)
	p.timer = time.AfterFunc(c.cfg.FaultDelay, func() {
		defer c.wg.Done()
		c.resolveFault(id, p)
	})
	c.pending[id] = p
}

func (c *Controller) cancelFault(id string) bool {
	c.faultMu.Lock()
	defer c.faultMu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return false
	}
	delete(c.pending, id)
	if p.timer.Stop() {
		c.wg.Done()
	}
	return true
}

func (c *Controller) resolveFault(id string, p *pendingFault) {
	c.faultMu.Lock()
	current, ok := c.pending[id]
	if !ok || current != p {
		c.faultMu.Unlock()
		return
	}
	delete(c.pending, id)
	c.faultMu.Unlock()

	node, managed := c.registry.Get(id)
	if !managed {
		c.log.Debug("fault for node no longer managed", "node", id)
		return
	}
	if node.Connected() {
		c.log.Info("node connected again, keeping it", "node", id)
		return
	}

	if !c.registry.Remove(id) {
		return
	}
	c.log.Warn("node removed after fault", "node", id, "managed", c.registry.Size())

	if c.ctx.Err() != nil {
		return
	}
	if _, err := c.EnsureTarget(c.ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
		c.log.Warn("backfill after fault incomplete", "node", id, "error", err)
	}
}

// PeriodicSweep hands every disconnected node to HandleNodeFault and then
// backfills the registry.
func (c *Controller) PeriodicSweep(ctx context.Context) {
	faulted := 0
	for n := range c.registry.All() {
		if !n.Connected() {
			faulted++
			c.HandleNodeFault(n.Identifier)
		}
	}

	c.log.Info("node sweep", "managed", c.registry.Size(), "disconnected", faulted)
	if _, err := c.EnsureTarget(ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
		c.log.Warn("node sweep backfill incomplete", "error", err)
	}
}

// Start runs the first sweep after the initial delay and then sweeps on
// every interval until ctx is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		initial := time.NewTimer(c.cfg.InitialDelay)
		defer initial.Stop()
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-initial.C:
			c.PeriodicSweep(c.ctx)
		}

		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.PeriodicSweep(c.ctx)
			}
		}
	}()
	c.log.Info("node controller started",
		"target", c.cfg.Target,
		"initial_delay", c.cfg.InitialDelay,
		"sweep_interval", c.cfg.SweepInterval,
	)
}

// Stop cancels pending faults, waits for background work and destroys every
// managed node.
func (c *Controller) Stop() {
	c.faultMu.Lock()
	c.stopped = true
	for id, p := range c.pending {
		if p.timer.Stop() {
			c.wg.Done()
		}
		delete(c.pending, id)
	}
	c.faultMu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.registry.Clear()
	c.log.Info("node controller stopped")
}
