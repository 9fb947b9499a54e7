package conduit

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Manager is the conduit engine for one server session.
// It owns the registry, the builder and the processor. Multiple Manager
// instances can coexist, each over its own Store.
//
// Lifecycle methods only queue work. The queue is drained by Tick, either from
// the Manager's own Scheduler or from the host's tick loop.
type Manager struct {
	cfg     Config
	store   Store
	log     *slog.Logger
	metrics *Metrics

	view      *view
	query     *SpatialQuery
	registry  *Registry
	builder   *NetworkBuilder
	processor *Processor
	scheduler *Scheduler

	handler NetworkHandler
	events  *eventQueue

	// mu serialises Tick with the read queries below.
	mu sync.Mutex
}

// newManager creates a new manager.
func newManager(s Store, cfg Config, log *slog.Logger, h NetworkHandler, m *Metrics) *Manager {
	mgr := &Manager{cfg: cfg, store: s, log: log, metrics: m, handler: h}
	mgr.events = &eventQueue{}
	mgr.view = newView(s, log, cfg)
	mgr.query = newSpatialQuery(mgr.view, cfg)
	mgr.registry = newRegistry(mgr.view, log, mgr.events, m)
	mgr.builder = newNetworkBuilder(mgr.view, mgr.query, mgr.registry, mgr.events, log)
	mgr.processor = newProcessor(mgr.view, mgr.builder, log, m)
	mgr.scheduler = newScheduler(mgr, cfg.TickRate())
	return mgr
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Store returns the entity store the manager works on.
func (m *Manager) Store() Store {
	return m.store
}

// Start starts the manager's scheduler.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Shutdown stops the scheduler. Queued work that was not yet drained stays
// queued and runs on the next manual Tick. Start after Shutdown does nothing.
func (m *Manager) Shutdown() {
	m.scheduler.Stop()
}

// Tick drains the processor queue, then delivers the network events it
// raised to the handler.
func (m *Manager) Tick() {
	m.mu.Lock()
	m.processor.Process()
	events := m.events.take()
	m.mu.Unlock()

	for _, deliver := range events {
		m.dispatch(deliver)
	}
}

// dispatch delivers one event, recovering a panicking handler.
func (m *Manager) dispatch(deliver func(NetworkHandler)) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.incRecovered()
			m.log.Error("conduit: panic in network handler", "err", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	deliver(m.handler)
}

// ConduitPlaced records a newly built conduit and queues its placement.
func (m *Manager) ConduitPlaced(id EntityID, bounds OBB) {
	InitConduit(m.store, id, bounds)
	m.processor.QueueConduit(id)
}

// ConduitChanged queues a conduit whose fields changed, for example after a
// mode switch or after its record arrived from replication.
func (m *Manager) ConduitChanged(id EntityID) {
	m.processor.QueueConduit(id)
}

// ConduitDestroyed captures a conduit's data and queues its removal. Call it
// before the host destroys the entity.
func (m *Manager) ConduitDestroyed(id EntityID) CachedConduit {
	c := m.CaptureConduit(id)
	m.processor.QueueConduitRemoval(c)
	return c
}

// ContainerPlaced records a newly built container and queues its placement.
func (m *Manager) ContainerPlaced(id EntityID, bounds OBB) {
	InitContainer(m.store, id, bounds)
	m.processor.QueueContainer(id)
}

// ContainerDestroyed captures a container's data and queues its removal. Call
// it before the host destroys the entity.
func (m *Manager) ContainerDestroyed(id EntityID) CachedContainer {
	c := m.CaptureContainer(id)
	m.processor.QueueContainerRemoval(c)
	return c
}

// CaptureConduit returns the data needed to unregister a conduit later.
func (m *Manager) CaptureConduit(id EntityID) CachedConduit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.captureConduit(id)
}

// CaptureContainer returns the data needed to unlink a container later.
func (m *Manager) CaptureContainer(id EntityID) CachedContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.captureContainer(id)
}

// Reload queues every conduit in the store for re-registration. Conduits keep
// their stored network ids and adjacency; use it after loading a world.
func (m *Manager) Reload() int {
	n := 0
	for _, id := range m.store.Entities() {
		if m.view.isConduit(id) {
			m.processor.QueueConduit(id)
			n++
		}
	}
	for _, id := range m.store.Entities() {
		if m.view.isContainer(id) && m.view.isNew(id) {
			m.processor.QueueContainer(id)
		}
	}
	return n
}

// RequestRebuild queues a full rebuild of every network from stored
// adjacency.
func (m *Manager) RequestRebuild() {
	m.processor.QueueRebuild()
}

// RequestRescan queues a fresh adjacency scan of every conduit within radius
// of center, followed by a full rebuild.
func (m *Manager) RequestRescan(center mgl64.Vec3, radius float64) {
	m.processor.QueueRescan(center, radius)
}

// Pending returns the number of queued items.
func (m *Manager) Pending() int {
	return m.processor.Pending()
}

// Conduit returns a handle for a conduit entity.
func (m *Manager) Conduit(id EntityID) (*Conduit, bool) {
	if !m.view.isConduit(id) {
		return nil, false
	}
	return &Conduit{id: id, m: m}, true
}

// Container returns a handle for a container entity.
func (m *Manager) Container(id EntityID) (*Container, bool) {
	if !m.view.isContainer(id) {
		return nil, false
	}
	return &Container{id: id, m: m}, true
}

// Network returns the id, members and validity of the network with the
// given id.
func (m *Manager) Network(id string) (NetworkInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.registry.Network(id)
	if n == nil {
		return NetworkInfo{}, false
	}
	return networkInfo(n), true
}

// NetworkOf returns the network a conduit belongs to.
func (m *Manager) NetworkOf(c EntityID) (NetworkInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.registry.NetworkOf(c)
	if !ok {
		return NetworkInfo{}, false
	}
	return networkInfo(n), true
}

// Networks returns every network ordered by id.
func (m *Manager) Networks() []NetworkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []NetworkInfo
	for _, n := range m.registry.Networks() {
		out = append(out, networkInfo(n))
	}
	return out
}

// ValidNetworks returns the networks that have both extract and insert
// nodes.
func (m *Manager) ValidNetworks() []NetworkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []NetworkInfo
	for _, n := range m.registry.ValidNetworks() {
		out = append(out, networkInfo(n))
	}
	return out
}

// ConduitsByChannel returns the members of a network on the given channel.
func (m *Manager) ConduitsByChannel(networkID string, channel int) []EntityID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.ConduitsByChannel(networkID, channel)
}

// Stats returns a summary of the registry.
func (m *Manager) Stats() RegistryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Stats()
}

// Describe returns a one-line debug summary of a conduit.
func (m *Manager) Describe(id EntityID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builder.Describe(id)
}

// NearestConduit returns the conduit closest to pos within radius.
func (m *Manager) NearestConduit(pos mgl64.Vec3, radius float64) (EntityID, bool) {
	return m.query.NearestConduit(pos, radius)
}

// NetworkInfo is a point-in-time copy of a network.
type NetworkInfo struct {
	ID       string
	Conduits []EntityID
	Extract  []EntityID
	Insert   []EntityID
	Valid    bool
}

func networkInfo(n *Network) NetworkInfo {
	return NetworkInfo{
		ID:       n.ID(),
		Conduits: n.Conduits(),
		Extract:  n.ExtractNodes(),
		Insert:   n.InsertNodes(),
		Valid:    n.Valid(),
	}
}
