package conduit

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// idQueue is an insertion-ordered queue of distinct ids.
type idQueue struct {
	ids  []EntityID
	seen map[EntityID]struct{}
}

func (q *idQueue) push(id EntityID) {
	if q.seen == nil {
		q.seen = make(map[EntityID]struct{})
	}
	if _, ok := q.seen[id]; ok {
		return
	}
	q.seen[id] = struct{}{}
	q.ids = append(q.ids, id)
}

func (q *idQueue) drop(id EntityID) {
	if _, ok := q.seen[id]; !ok {
		return
	}
	delete(q.seen, id)
	for i, other := range q.ids {
		if other == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

type rescanRequest struct {
	center mgl64.Vec3
	radius float64
}

// pending is everything queued since the last pass.
type pending struct {
	removals          []CachedConduit
	conduits          idQueue
	containers        idQueue
	containerRemovals []CachedContainer
	rescans           []rescanRequest
	rebuild           bool
}

func (p *pending) empty() bool {
	return len(p.removals) == 0 && len(p.conduits.ids) == 0 &&
		len(p.containers.ids) == 0 && len(p.containerRemovals) == 0 &&
		len(p.rescans) == 0 && !p.rebuild
}

// Processor batches lifecycle events and applies them once per tick.
//
// Queue methods are safe to call from any goroutine. Process must only be
// called from one goroutine at a time; the Manager guarantees this.
type Processor struct {
	mu    sync.Mutex
	queue pending

	view    *view
	builder *NetworkBuilder
	log     *slog.Logger
	metrics *Metrics
}

func newProcessor(v *view, b *NetworkBuilder, log *slog.Logger, m *Metrics) *Processor {
	return &Processor{view: v, builder: b, log: log, metrics: m}
}

// QueueConduit queues a conduit for placement or update. A conduit flagged as
// new gets a full placement, any other a re-registration.
func (p *Processor) QueueConduit(id EntityID) {
	p.mu.Lock()
	p.queue.conduits.push(id)
	p.mu.Unlock()
}

// QueueConduitRemoval queues a removed conduit. c must be captured before the
// entity is destroyed.
func (p *Processor) QueueConduitRemoval(c CachedConduit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.conduits.drop(c.ID)
	for _, other := range p.queue.removals {
		if other.ID == c.ID {
			return
		}
	}
	p.queue.removals = append(p.queue.removals, c)
}

// QueueContainer queues a container for placement.
func (p *Processor) QueueContainer(id EntityID) {
	p.mu.Lock()
	p.queue.containers.push(id)
	p.mu.Unlock()
}

// QueueContainerRemoval queues a removed container. c must be captured before
// the entity is destroyed.
func (p *Processor) QueueContainerRemoval(c CachedContainer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.containers.drop(c.ID)
	for _, other := range p.queue.containerRemovals {
		if other.ID == c.ID {
			return
		}
	}
	p.queue.containerRemovals = append(p.queue.containerRemovals, c)
}

// QueueRescan queues a fresh adjacency scan of every conduit within radius of
// center. A rescan is followed by a full rebuild.
func (p *Processor) QueueRescan(center mgl64.Vec3, radius float64) {
	p.mu.Lock()
	p.queue.rescans = append(p.queue.rescans, rescanRequest{center: center, radius: radius})
	p.mu.Unlock()
}

// QueueRebuild queues a full rebuild from stored adjacency.
func (p *Processor) QueueRebuild() {
	p.mu.Lock()
	p.queue.rebuild = true
	p.mu.Unlock()
}

// Pending returns the number of queued items.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue.removals) + len(p.queue.conduits.ids) + len(p.queue.containers.ids) +
		len(p.queue.containerRemovals) + len(p.queue.rescans)
	if p.queue.rebuild {
		n++
	}
	return n
}

// Process drains the queue and applies every item, phase by phase. An item
// that panics is logged and skipped; the rest of the batch still runs.
func (p *Processor) Process() {
	p.mu.Lock()
	q := p.queue
	p.queue = pending{}
	p.mu.Unlock()

	if q.empty() {
		return
	}
	start := time.Now()

	for _, c := range q.removals {
		p.safe(PhaseRemovals, c.ID, func() { p.builder.OnConduitRemoved(c) })
	}
	for _, id := range q.conduits.ids {
		p.safe(PhaseConduits, id, func() { p.processConduit(id) })
	}
	for _, id := range q.containers.ids {
		p.safe(PhaseContainers, id, func() { p.processContainer(id) })
	}
	for _, c := range q.containerRemovals {
		p.safe(PhaseContainerRemovals, c.ID, func() { p.builder.OnContainerRemoved(c) })
	}
	for _, r := range q.rescans {
		p.safe(PhaseMaintenance, None, func() { p.builder.RescanArea(r.center, r.radius) })
	}
	if q.rebuild && len(q.rescans) == 0 {
		p.safe(PhaseMaintenance, None, p.builder.RebuildAll)
	}

	p.metrics.setQueued(PhaseRemovals, len(q.removals))
	p.metrics.setQueued(PhaseConduits, len(q.conduits.ids))
	p.metrics.setQueued(PhaseContainers, len(q.containers.ids))
	p.metrics.setQueued(PhaseContainerRemovals, len(q.containerRemovals))
	maintenance := len(q.rescans)
	if q.rebuild {
		maintenance++
	}
	p.metrics.setQueued(PhaseMaintenance, maintenance)
	p.metrics.observeTick(time.Since(start))
}

func (p *Processor) processConduit(id EntityID) {
	if !p.view.store.Exists(id) {
		p.log.Debug("conduit: skipping destroyed conduit", "id", id)
		return
	}
	if !p.view.isNew(id) {
		p.builder.OnConduitUpdate(id)
		return
	}
	bounds, ok := p.view.bounds(id)
	if !ok {
		p.log.Warn("conduit: conduit has no bounds, skipping placement", "id", id)
		return
	}
	p.builder.OnConduitPlaced(id, bounds)
}

func (p *Processor) processContainer(id EntityID) {
	if !p.view.store.Exists(id) || !p.view.isNew(id) {
		return
	}
	bounds, ok := p.view.bounds(id)
	if !ok {
		p.log.Warn("conduit: container has no bounds, skipping placement", "id", id)
		return
	}
	p.view.setIsNew(id, false)
	p.builder.OnContainerPlaced(id, bounds)
}

// safe runs fn, recovering and logging a panic.
func (p *Processor) safe(phase Phase, id EntityID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.incRecovered()
			p.log.Error("conduit: recovered panic", "phase", phase.String(), "id", id,
				"err", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	fn()
}
