package conduit

// NetworkHandler receives network lifecycle events.
//
// Events raised by a tick are delivered in order on the ticking goroutine
// once the tick has finished and released the Manager. Handlers may call the
// Manager's read queries and the lifecycle methods that queue work for the
// next tick.
type NetworkHandler interface {
	HandleNetworkCreated(e EventNetworkCreated)
	HandleNetworkMerged(e EventNetworkMerged)
	HandleNetworkSplit(e EventNetworkSplit)
	HandleNetworkRemoved(e EventNetworkRemoved)
	HandleContainerLinked(e EventContainerLinked)
	HandleContainerUnlinked(e EventContainerUnlinked)
}

// NopHandler implements NetworkHandler with no-ops. Embed it to handle only
// some events.
type NopHandler struct{}

// Compile-time check that NopHandler implements NetworkHandler.
var _ NetworkHandler = NopHandler{}

func (NopHandler) HandleNetworkCreated(EventNetworkCreated)       {}
func (NopHandler) HandleNetworkMerged(EventNetworkMerged)         {}
func (NopHandler) HandleNetworkSplit(EventNetworkSplit)           {}
func (NopHandler) HandleNetworkRemoved(EventNetworkRemoved)       {}
func (NopHandler) HandleContainerLinked(EventContainerLinked)     {}
func (NopHandler) HandleContainerUnlinked(EventContainerUnlinked) {}

// eventQueue collects the events of one tick for delivery after the
// Manager's lock is released.
type eventQueue struct {
	pending []func(NetworkHandler)
}

var _ NetworkHandler = (*eventQueue)(nil)

func (q *eventQueue) HandleNetworkCreated(e EventNetworkCreated) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleNetworkCreated(e) })
}

func (q *eventQueue) HandleNetworkMerged(e EventNetworkMerged) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleNetworkMerged(e) })
}

func (q *eventQueue) HandleNetworkSplit(e EventNetworkSplit) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleNetworkSplit(e) })
}

func (q *eventQueue) HandleNetworkRemoved(e EventNetworkRemoved) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleNetworkRemoved(e) })
}

func (q *eventQueue) HandleContainerLinked(e EventContainerLinked) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleContainerLinked(e) })
}

func (q *eventQueue) HandleContainerUnlinked(e EventContainerUnlinked) {
	q.pending = append(q.pending, func(h NetworkHandler) { h.HandleContainerUnlinked(e) })
}

// take returns the queued deliveries and empties the queue.
func (q *eventQueue) take() []func(NetworkHandler) {
	p := q.pending
	q.pending = nil
	return p
}
