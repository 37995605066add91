package contracts

// PortInfo describes one port seen during enumeration.
type PortInfo struct {
	Index int    // Zero-based ordinal, valid only until the next hot-plug event.
	Name  string // Name reported by the backend.
}
