package conduit

// Event types passed to a NetworkHandler. They carry ids and sizes only, never
// the live network records.

// EventNetworkCreated is emitted when a network is allocated.
type EventNetworkCreated struct {
	NetworkID string
}

// EventNetworkMerged is emitted when two or more networks become connected
// and are folded into one.
type EventNetworkMerged struct {
	Into string
	From []string
	Size int
}

// EventNetworkSplit is emitted when removing a conduit disconnects its
// network. From keeps the largest component.
type EventNetworkSplit struct {
	From  string
	Into  []string
	Sizes []int
}

// EventNetworkRemoved is emitted when a network loses its last conduit or is
// folded into another.
type EventNetworkRemoved struct {
	NetworkID string
}

// EventContainerLinked is emitted when a conduit is linked to a container.
type EventContainerLinked struct {
	Container EntityID
	Conduit   EntityID
}

// EventContainerUnlinked is emitted when a conduit loses its container.
type EventContainerUnlinked struct {
	Container EntityID
	Conduit   EntityID
}
