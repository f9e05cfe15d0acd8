// Package light implements a light client for the Ethereum beacon chain.
// It tracks sync committees and finalized headers, allowing verification
// of state proofs without downloading the full blockchain state.
package light

import (
	"math/big"

	"github.com/lightforge/ethverify/core/types"
)

// LightBlock contains a block header and associated proofs sufficient for
// light client verification.
type LightBlock struct {
	Header     *types.Header
	StateProof []byte
	TxProofs   [][]byte
}

// SyncCommittee represents a beacon chain sync committee that signs
// light client updates. Each committee serves for ~27 hours (256 epochs).
type SyncCommittee struct {
	Pubkeys         [][]byte
	AggregatePubkey []byte
	Period          uint64
	// SecretKeys holds BLS secret keys for test committee members.
	// Not populated in production; used by SignSyncCommittee for testing.
	SecretKeys []*big.Int
}

// LightClientUpdate carries the data needed to advance a light client's
// view of the chain, mirroring Altair's LightClientUpdate container: an
// attested beacon header whose sync aggregate is checked, a finalized
// header bound into the attested header's state via a finality branch,
// and (optionally) the next period's sync committee bound via its own
// branch.
type LightClientUpdate struct {
	AttestedHeader  *LightHeader
	FinalizedHeader *LightHeader

	// FinalityBranch is the Merkle proof binding hash_tree_root(FinalizedHeader)
	// into AttestedHeader.StateRoot at FinalityBranchIndex.
	FinalityBranch [][32]byte

	// SignatureSlot is the slot at which the sync committee produced the
	// aggregate signature, distinct from (and required to exceed) the
	// attested header's own slot.
	SignatureSlot     uint64
	SyncCommitteeBits []byte
	Signature         []byte

	// NextSyncCommittee, when present, is bound into AttestedHeader.StateRoot
	// via NextSyncCommitteeBranch at NextSyncCommitteeGIndex.
	NextSyncCommittee       *SyncCommittee
	NextSyncCommitteeBranch [][32]byte
}

// LightClientState holds the current state of the light client: the fork
// context needed to recompute signing domains, the latest finalized
// header, and the sync committees for the current and (once learned) next
// period.
type LightClientState struct {
	GenesisValidatorsRoot [32]byte
	ForkVersion           [4]byte

	FinalizedHeader *LightHeader
	LastUpdatedSlot uint64

	CurrentCommittee  *SyncCommittee
	NextSyncCommittee *SyncCommittee
}

// SignerCount returns the number of set bits in the sync committee
// participation bitfield, indicating how many validators signed.
func (u *LightClientUpdate) SignerCount() int {
	count := 0
	for _, b := range u.SyncCommitteeBits {
		for i := 0; i < 8; i++ {
			if b&(1<<uint(i)) != 0 {
				count++
			}
		}
	}
	return count
}

// SupermajoritySigned returns true if >= 2/3 of the sync committee
// signed this update.
func (u *LightClientUpdate) SupermajoritySigned(committeeSize int) bool {
	if committeeSize == 0 {
		return false
	}
	return u.SignerCount()*3 >= committeeSize*2
}
