package light

import (
	"errors"
	"sync"

	"github.com/lightforge/ethverify/core/types"
)

// Checkpoint consensus errors.
var (
	ErrCheckpointNilRoot     = errors.New("light: checkpoint block root is zero")
	ErrCheckpointNoQuorum    = errors.New("light: checkpoint has not reached source quorum")
	ErrCheckpointConflict    = errors.New("light: sources disagree on the checkpoint for this slot")
	ErrCheckpointAlreadySeen = errors.New("light: source has already voted for this slot")
)

// VerifiedCheckpoint is the single unconditionally-trusted fact a light
// client bootstraps from: an independently-agreed-upon (block root, slot)
// pair. Everything else is derived from it cryptographically.
type VerifiedCheckpoint struct {
	BlockRoot types.Hash
	Slot      uint64
}

// MinCheckpointSources is the minimum number of independent sources that
// must agree on a (block_root, slot) pair before it is trusted. A single
// source (or a majority drawn from colluding sources) is not sufficient --
// the soft-trust-boundary principle requires independent agreement.
const MinCheckpointSources = 2

// CheckpointTracker accumulates checkpoint votes from independent sources
// (e.g. distinct bootstrap URLs, distinct operators) and resolves a trusted
// VerifiedCheckpoint once enough of them agree on the same (block_root,
// slot) pair. It never trusts a single source, regardless of how the
// verifier is later updated via sync committee signatures.
type CheckpointTracker struct {
	mu       sync.RWMutex
	votes    map[uint64]map[string]types.Hash // slot -> source -> block root
	resolved map[uint64]types.Hash            // slot -> agreed block root
}

// NewCheckpointTracker creates an empty checkpoint tracker.
func NewCheckpointTracker() *CheckpointTracker {
	return &CheckpointTracker{
		votes:    make(map[uint64]map[string]types.Hash),
		resolved: make(map[uint64]types.Hash),
	}
}

// AddVote records that source claims blockRoot is the canonical checkpoint
// for slot. A source may only vote once per slot; a repeat vote for a
// different root is a conflict, not an overwrite.
func (ct *CheckpointTracker) AddVote(source string, slot uint64, blockRoot types.Hash) error {
	if blockRoot.IsZero() {
		return ErrCheckpointNilRoot
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	bySource, ok := ct.votes[slot]
	if !ok {
		bySource = make(map[string]types.Hash)
		ct.votes[slot] = bySource
	}

	if existing, voted := bySource[source]; voted {
		if existing != blockRoot {
			return ErrCheckpointConflict
		}
		return ErrCheckpointAlreadySeen
	}
	bySource[source] = blockRoot

	// Re-resolve: count agreement per root among this slot's voters.
	counts := make(map[types.Hash]int, len(bySource))
	for _, root := range bySource {
		counts[root]++
	}
	for root, n := range counts {
		if n >= MinCheckpointSources {
			ct.resolved[slot] = root
		}
	}
	return nil
}

// Resolve returns the VerifiedCheckpoint for slot once at least
// MinCheckpointSources independent sources have agreed on the same block
// root, or ErrCheckpointNoQuorum if agreement has not yet been reached.
func (ct *CheckpointTracker) Resolve(slot uint64) (*VerifiedCheckpoint, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	root, ok := ct.resolved[slot]
	if !ok {
		return nil, ErrCheckpointNoQuorum
	}
	return &VerifiedCheckpoint{BlockRoot: root, Slot: slot}, nil
}

// SourceCount returns the number of distinct sources that have voted for
// slot, regardless of whether they agree.
func (ct *CheckpointTracker) SourceCount(slot uint64) int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.votes[slot])
}

// BootstrapFromCheckpoint verifies a LightClientBootstrap against a
// resolved VerifiedCheckpoint and, on success, produces the initial
// LightClientState. It is the sole entry point by which a checkpoint's
// trust is extended into the verifier's cryptographic state.
func BootstrapFromCheckpoint(checkpoint *VerifiedCheckpoint, bootstrap *LightClientBootstrap) (*LightClientState, error) {
	if checkpoint == nil {
		return nil, ErrCheckpointNilRoot
	}
	return ProcessBootstrap(bootstrap, checkpoint.BlockRoot)
}
