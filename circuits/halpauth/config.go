package halpauth

// MaxTreeDepth mirrors config.MaxTreeDepth. Circuit packages stay
// dependency-free from the rest of the module, so the value is duplicated
// rather than imported.
const (
	MaxTreeDepth = 20

	// FieldBoundBits is the comparator width every comparison-bearing
	// witness value must fit under; PrepareWitness in witness.go rejects a
	// pseudonym or nullifier at or above 2^FieldBoundBits.
	FieldBoundBits = 252
)
