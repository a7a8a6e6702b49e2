package snapshot

// BackpressurePolicy selects the packer's behavior when the handoff channel
// is at capacity. Either way the packer never blocks unboundedly and writer
// progress is unaffected.
type BackpressurePolicy uint8

const (
	// DropOnFull discards the freshly packed snapshot and counts it as
	// dropped. Non-fatal: the next pack cycle produces a newer capture.
	DropOnFull BackpressurePolicy = iota
	// BoundedWait retries the send for a configured bounded duration before
	// dropping.
	BoundedWait
)

// String returns the configuration literal for the policy.
func (p BackpressurePolicy) String() string {
	if p == BoundedWait {
		return "wait"
	}
	return "drop"
}
