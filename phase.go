package conduit

// Phase is one step of a Processor pass.
// Phases run in order: removals, conduits, containers, container removals,
// maintenance.
type Phase int

const (
	// PhaseRemovals drops removed conduits first, so no later step reads
	// their edges.
	PhaseRemovals Phase = iota

	// PhaseConduits places new conduits and re-registers updated ones.
	PhaseConduits

	// PhaseContainers links new containers.
	PhaseContainers

	// PhaseContainerRemovals unlinks removed containers.
	PhaseContainerRemovals

	// PhaseMaintenance runs requested area rescans, then a full rebuild.
	PhaseMaintenance

	// phaseCount is the total number of phases.
	phaseCount
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseRemovals:
		return "Removals"
	case PhaseConduits:
		return "Conduits"
	case PhaseContainers:
		return "Containers"
	case PhaseContainerRemovals:
		return "ContainerRemovals"
	case PhaseMaintenance:
		return "Maintenance"
	default:
		return "Unknown"
	}
}
