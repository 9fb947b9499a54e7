package conduit

// Mode is the role a conduit plays in its network.
type Mode int

const (
	// ModeConduit is a pass-through segment. It carries items but neither
	// extracts nor inserts.
	ModeConduit Mode = iota

	// ModeExtract pulls items out of the linked container.
	ModeExtract

	// ModeInsert pushes items into the linked container.
	ModeInsert

	// modeCount is the number of valid modes.
	modeCount
)

// ParseMode converts the integer stored on an entity into a Mode.
// It returns false for negative or unknown values, which mark an entity that
// is not (yet) a conduit.
func ParseMode(v int) (Mode, bool) {
	if v < 0 || v >= int(modeCount) {
		return ModeConduit, false
	}
	return Mode(v), true
}

// HasRole returns true for extract and insert nodes.
func (m Mode) HasRole() bool {
	return m == ModeExtract || m == ModeInsert
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeConduit:
		return "Conduit"
	case ModeExtract:
		return "Extract"
	case ModeInsert:
		return "Insert"
	default:
		return "Unknown"
	}
}
