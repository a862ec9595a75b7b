// Package config holds protocol-fixed constants and the runtime Settings
// type. Nothing here is a package-level singleton.
package config

import "time"

const (
	// ElementSize is the byte width of one Poseidon absorption chunk, kept
	// below the BN254 Fr modulus.
	ElementSize = 31

	// MaxTreeDepth is the fixed height of the indexed nullifier tree
	// (H=20, ~2^20 leaves). Changing this breaks every deployed proving key.
	MaxTreeDepth = 20

	// FieldBoundBits bounds every comparison-bearing circuit value. Values
	// must stay below 2^252; the circuit's comparator is not safe beyond
	// this without a redesign.
	FieldBoundBits = 252

	// ChallengeTTL is the validity window of an issued challenge.
	ChallengeTTL = 5 * time.Minute

	// SweeperInterval is how often the challenge store evicts expired entries.
	SweeperInterval = 60 * time.Second

	// SessionNonceRetryCap bounds the resampling loop in the orchestrator
	// when a derived pseudonym or nullifier exceeds FieldBoundBits.
	SessionNonceRetryCap = 100

	// KeyringService namespaces every master-secret entry in the OS keyring.
	KeyringService = "halp-credential-system"
)

// Settings carries runtime-tunable values that are not protocol constants.
// No package in this module takes a Settings value: the cmd/ entry points
// pass the values they need (such as the registry window size) directly.
type Settings struct {
	// RecentRootsWindow is how many historical registry roots are still
	// accepted as fresh during verification (0 means exact-match only); it
	// corresponds to registry.New's windowSize argument.
	RecentRootsWindow int

	// WorkerPoolSize is a size for SNARK/BBS+ proof generation workers. The
	// orchestrator does not read it; it runs its proof tasks on an errgroup
	// with no size limit.
	WorkerPoolSize int
}

// DefaultSettings returns conservative production defaults.
func DefaultSettings() Settings {
	return Settings{
		RecentRootsWindow: 0,
		WorkerPoolSize:    4,
	}
}
