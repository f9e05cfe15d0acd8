package light

import (
	"errors"
	"math/big"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/crypto"
	"github.com/lightforge/ethverify/ssz"
)

// Sync committee constants matching the Ethereum beacon chain specification.
const (
	// SlotsPerSyncCommitteePeriod is the number of slots in one sync committee
	// period: EPOCHS_PER_SYNC_COMMITTEE_PERIOD * SLOTS_PER_EPOCH = 256 * 32.
	SlotsPerSyncCommitteePeriod = 8192

	// EpochsPerSyncCommitteePeriod is the number of epochs per committee period.
	EpochsPerSyncCommitteePeriod = 256

	// MinSyncCommitteeParticipants is the minimum number of signers required
	// for a sync committee signature to be accepted: 2/3 of 512 members,
	// rounded up (342).
	MinSyncCommitteeParticipants = 342

	// SyncCommitteeBitsLength is the required byte length of a committee
	// participation bitfield: one bit per member, Bitvector[512].
	SyncCommitteeBitsLength = (SyncCommitteeSize + 7) / 8

	// NextSyncCommitteeBranchDepth and NextSyncCommitteeGIndex locate the
	// next sync committee's SSZ root within the attested header's state
	// root, per the Altair beacon state tree.
	NextSyncCommitteeBranchDepth = 5
	NextSyncCommitteeGIndex      = 55
)

// DomainSyncCommittee is the Altair DOMAIN_SYNC_COMMITTEE domain type used
// to derive the signing domain for sync committee signatures.
var DomainSyncCommittee = [4]byte{0x07, 0x00, 0x00, 0x00}

// Sync committee errors.
var (
	ErrNilCommittee              = errors.New("light: nil sync committee")
	ErrCommitteeWrongSize        = errors.New("light: sync committee must have 512 pubkeys")
	ErrNilUpdate                 = errors.New("light: nil light client update")
	ErrInvalidSignature          = errors.New("light: invalid sync committee signature")
	ErrInsufficientParticipation = errors.New("light: insufficient sync committee participation")
	ErrNilBootstrap              = errors.New("light: nil bootstrap data")
	ErrBootstrapMismatch         = errors.New("light: bootstrap header root mismatch")
	ErrUpdateNotNewer            = errors.New("light: update does not advance finalized state")
	ErrBitfieldWrongLength       = errors.New("light: sync committee bitfield has the wrong length")
	ErrBadSignatureSlot          = errors.New("light: signature slot does not exceed attested header slot")
	ErrPeriodGap                 = errors.New("light: update period is not reachable from the current committee state")
	ErrNilNextCommitteeBranch    = errors.New("light: nil next sync committee branch")
	ErrNextCommitteeMismatch     = errors.New("light: next sync committee branch verification failed")
)

// SyncCommitteePeriod computes the sync committee period index for a given slot.
// The committee serving slot S is period = S / SlotsPerSyncCommitteePeriod.
func SyncCommitteePeriod(slot uint64) uint64 {
	return slot / SlotsPerSyncCommitteePeriod
}

// SyncCommitteePeriodStartSlot returns the first slot of the given period.
func SyncCommitteePeriodStartSlot(period uint64) uint64 {
	return period * SlotsPerSyncCommitteePeriod
}

// ComputeCommitteeRoot computes the SSZ hash_tree_root of the sync
// committee's pubkeys as a Vector[BLSPubkey, SYNC_COMMITTEE_SIZE]: each
// 48-byte pubkey is Merkleized on its own, and the per-pubkey roots are
// Merkleized again into the vector root.
func ComputeCommitteeRoot(pubkeys [][]byte) types.Hash {
	roots := make([][32]byte, len(pubkeys))
	for i, pk := range pubkeys {
		var fixed [48]byte
		copy(fixed[:], pk)
		roots[i] = ssz.HashTreeRootBytes48(fixed)
	}
	return types.Hash(ssz.HashTreeRootVector(roots))
}

// computeForkDataRoot computes the SSZ hash_tree_root of the Altair
// ForkData container (current_version, genesis_validators_root), the
// value that anchors the signing domain to a specific fork and chain.
func computeForkDataRoot(forkVersion [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	var versionLeaf [32]byte
	copy(versionLeaf[:4], forkVersion[:])
	return ssz.ConcatHash(versionLeaf, genesisValidatorsRoot)
}

// ComputeDomain derives a signing domain from a domain type, fork version,
// and genesis validators root, per compute_domain: the domain type occupies
// the first 4 bytes and the leading 28 bytes of the fork data root fill the
// rest.
func ComputeDomain(domainType [4]byte, forkVersion [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	forkDataRoot := computeForkDataRoot(forkVersion, genesisValidatorsRoot)
	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain
}

// VerifySyncCommitteeSignature verifies the aggregate BLS signature from a
// sync committee using BLS12-381 aggregate signature verification. The
// signing message is the domain-separated signing root alone (per
// compute_signing_root); it is not further bound to the committee's own
// root, since the committee is already authenticated by the caller's
// period-based selection.
// Returns nil on success, or an error describing the failure.
func VerifySyncCommitteeSignature(
	committee *SyncCommittee,
	signingRoot types.Hash,
	committeeBits []byte,
	signature []byte,
) error {
	if committee == nil {
		return ErrNilCommittee
	}
	if len(committee.Pubkeys) != SyncCommitteeSize {
		return ErrCommitteeWrongSize
	}

	// Count participating validators.
	participantCount := countBits(committeeBits)
	if participantCount < MinSyncCommitteeParticipants {
		return ErrInsufficientParticipation
	}

	// Check supermajority (2/3 of committee).
	if participantCount*3 < SyncCommitteeSize*2 {
		return ErrInsufficientParticipation
	}

	// Collect participating pubkeys based on committee bits.
	var participantPubkeys [][]byte
	for i := 0; i < SyncCommitteeSize; i++ {
		if i/8 < len(committeeBits) && committeeBits[i/8]&(1<<(uint(i)%8)) != 0 {
			participantPubkeys = append(participantPubkeys, committee.Pubkeys[i])
		}
	}

	if len(participantPubkeys) == 0 {
		return ErrInsufficientParticipation
	}

	// Verify using BLS FastAggregateVerify.
	if len(signature) != crypto.BLSSignatureSize {
		return ErrInvalidSignature
	}
	if !crypto.DefaultBLSBackend().FastAggregateVerify(participantPubkeys, signingRoot[:], signature) {
		return ErrInvalidSignature
	}
	return nil
}

// SignSyncCommittee creates a BLS aggregate sync committee signature.
// Each participating committee member signs the signing root with their
// secret key (derived from committee.SecretKeys if available).
func SignSyncCommittee(
	committee *SyncCommittee,
	signingRoot types.Hash,
	committeeBits []byte,
) []byte {
	// Collect individual signatures from participating members.
	var sigs [][crypto.BLSSignatureSize]byte
	for i := 0; i < SyncCommitteeSize; i++ {
		if i/8 < len(committeeBits) && committeeBits[i/8]&(1<<(uint(i)%8)) != 0 {
			if i < len(committee.SecretKeys) && committee.SecretKeys[i] != nil {
				sig := crypto.BLSSign(committee.SecretKeys[i], signingRoot[:])
				sigs = append(sigs, sig)
			}
		}
	}

	// Aggregate the individual signatures.
	aggSig := crypto.AggregateSignatures(sigs)
	return aggSig[:]
}

// NextSyncCommittee derives a deterministic next sync committee from the
// current committee. Uses real BLS keypairs derived from the next period.
func NextSyncCommittee(current *SyncCommittee) (*SyncCommittee, error) {
	if current == nil {
		return nil, ErrNilCommittee
	}
	if len(current.Pubkeys) != SyncCommitteeSize {
		return nil, ErrCommitteeWrongSize
	}

	nextPeriod := current.Period + 1
	nextPubkeys := make([][]byte, SyncCommitteeSize)
	nextSecretKeys := make([]*big.Int, SyncCommitteeSize)
	for i := 0; i < SyncCommitteeSize; i++ {
		// Derive secret key from next period and index.
		sk := new(big.Int).SetUint64(nextPeriod*uint64(SyncCommitteeSize) + uint64(i) + 1)
		nextSecretKeys[i] = sk
		pk := crypto.BLSPubkeyFromSecret(sk)
		nextPubkeys[i] = pk[:]
	}

	// Compute aggregate pubkey using BLS aggregation.
	aggPK := crypto.AggregatePublicKeys(bls48SlicesTo48Arrays(nextPubkeys))
	aggPKSlice := aggPK[:]

	return &SyncCommittee{
		Pubkeys:         nextPubkeys,
		AggregatePubkey: aggPKSlice,
		Period:          nextPeriod,
		SecretKeys:      nextSecretKeys,
	}, nil
}

// selectCommittee picks the committee that must have produced an update's
// signature, based on the period of the attested header's slot relative to
// the light client's last-updated slot. Only the current period's committee
// or the immediately following period's (already learned via a prior
// update's NextSyncCommittee) are acceptable; any larger gap means the
// client has fallen too far behind to verify without first catching up
// period by period.
func selectCommittee(state *LightClientState, attestedSlot uint64) (*SyncCommittee, error) {
	currentPeriod := SyncCommitteePeriod(state.LastUpdatedSlot)
	updatePeriod := SyncCommitteePeriod(attestedSlot)

	switch updatePeriod {
	case currentPeriod:
		if state.CurrentCommittee == nil {
			return nil, ErrNilCommittee
		}
		return state.CurrentCommittee, nil
	case currentPeriod + 1:
		if state.NextSyncCommittee == nil {
			return nil, ErrNilCommittee
		}
		return state.NextSyncCommittee, nil
	default:
		return nil, ErrPeriodGap
	}
}

// verifyNextSyncCommitteeBranch checks that next's pubkey-vector root is
// included in attested.StateRoot at NextSyncCommitteeGIndex, the same way
// VerifyFinalityProof binds a finalized header into the state root.
func verifyNextSyncCommitteeBranch(attested *LightHeader, next *SyncCommittee, branch [][32]byte) error {
	if next == nil {
		return ErrNilCommittee
	}
	if len(branch) == 0 {
		return ErrNilNextCommitteeBranch
	}
	leaf := [32]byte(ComputeCommitteeRoot(next.Pubkeys))
	computed := verifyMerkleBranch(leaf, branch, NextSyncCommitteeGIndex)
	if computed != attested.StateRoot {
		return ErrNextCommitteeMismatch
	}
	return nil
}

// LightClientBootstrap contains the data needed to initialize a light client
// from a trusted finalized checkpoint.
type LightClientBootstrap struct {
	Header                *LightHeader
	CurrentCommittee      *SyncCommittee
	CommitteeRoot         types.Hash
	GenesisValidatorsRoot [32]byte
	ForkVersion           [4]byte
}

// ProcessBootstrap initializes a LightClientState from a bootstrap packet.
// The trusted root is used to validate the bootstrap header's hash tree root.
func ProcessBootstrap(bootstrap *LightClientBootstrap, trustedRoot types.Hash) (*LightClientState, error) {
	if bootstrap == nil {
		return nil, ErrNilBootstrap
	}
	if bootstrap.Header == nil {
		return nil, ErrNoFinalizedHdr
	}
	if bootstrap.CurrentCommittee == nil {
		return nil, ErrNilCommittee
	}
	if len(bootstrap.CurrentCommittee.Pubkeys) != SyncCommitteeSize {
		return nil, ErrCommitteeWrongSize
	}

	// Verify the committee root matches.
	computedRoot := ComputeCommitteeRoot(bootstrap.CurrentCommittee.Pubkeys)
	if computedRoot != bootstrap.CommitteeRoot {
		return nil, ErrBootstrapMismatch
	}

	// The trusted checkpoint identifies a beacon block root, the hash tree
	// root of the header container itself.
	if !trustedRoot.IsZero() && types.Hash(bootstrap.Header.HashTreeRoot()) != trustedRoot {
		return nil, ErrBootstrapMismatch
	}

	return &LightClientState{
		GenesisValidatorsRoot: bootstrap.GenesisValidatorsRoot,
		ForkVersion:           bootstrap.ForkVersion,
		FinalizedHeader:       bootstrap.Header,
		LastUpdatedSlot:       bootstrap.Header.Slot,
		CurrentCommittee:      bootstrap.CurrentCommittee,
	}, nil
}

// ProcessIncrementalUpdate validates and applies an incremental light
// client update: it verifies the sync committee signature over the
// attested header, the finality branch binding the finalized header into
// the attested header's state, and (if present) the next sync committee's
// branch, then advances state and rotates committees on period crossings.
// This is the single transition function used by both the free-function
// bootstrap/update flow and LightSyncer.
func ProcessIncrementalUpdate(
	state *LightClientState,
	update *LightClientUpdate,
) error {
	if update == nil {
		return ErrNilUpdate
	}
	if update.AttestedHeader == nil || update.FinalizedHeader == nil {
		return ErrNoFinalizedHdr
	}
	if state.CurrentCommittee == nil {
		return ErrNilCommittee
	}
	if len(update.SyncCommitteeBits) != SyncCommitteeBitsLength {
		return ErrBitfieldWrongLength
	}

	// The finalized header must not be ahead of the header it is attested
	// alongside.
	if update.FinalizedHeader.Slot > update.AttestedHeader.Slot {
		return ErrNotFinalized
	}

	// The committee signs at a slot strictly after the header it attests to.
	if update.SignatureSlot <= update.AttestedHeader.Slot {
		return ErrBadSignatureSlot
	}

	// Reject replays and non-advancing updates: an equal-slot re-apply is
	// not newer and must be rejected, not silently accepted.
	if state.FinalizedHeader != nil && update.FinalizedHeader.Slot <= state.FinalizedHeader.Slot {
		return ErrUpdateNotNewer
	}

	committee, err := selectCommittee(state, update.AttestedHeader.Slot)
	if err != nil {
		return err
	}

	domain := ComputeDomain(DomainSyncCommittee, state.ForkVersion, state.GenesisValidatorsRoot)
	signingRoot := ComputeSigningRoot(update.AttestedHeader, domain)
	if err := VerifySyncCommitteeSignature(
		committee,
		types.Hash(signingRoot),
		update.SyncCommitteeBits,
		update.Signature,
	); err != nil {
		return err
	}

	finalizedRoot := update.FinalizedHeader.HashTreeRoot()
	if err := new(HeaderVerifier).VerifyFinalityProof(update.AttestedHeader, update.FinalityBranch, finalizedRoot); err != nil {
		return err
	}

	if update.NextSyncCommittee != nil {
		if err := verifyNextSyncCommitteeBranch(update.AttestedHeader, update.NextSyncCommittee, update.NextSyncCommitteeBranch); err != nil {
			return err
		}
	}

	priorPeriod := SyncCommitteePeriod(state.LastUpdatedSlot)
	updatePeriod := SyncCommitteePeriod(update.AttestedHeader.Slot)

	state.FinalizedHeader = update.FinalizedHeader
	state.LastUpdatedSlot = update.AttestedHeader.Slot

	if update.NextSyncCommittee != nil {
		state.NextSyncCommittee = update.NextSyncCommittee
	}
	if updatePeriod == priorPeriod+1 && state.NextSyncCommittee != nil {
		state.CurrentCommittee = state.NextSyncCommittee
		state.NextSyncCommittee = nil
	}

	return nil
}

// MakeTestSyncCommittee creates a sync committee with real BLS keypairs
// for testing purposes. Secret keys are deterministic based on period and index.
func MakeTestSyncCommittee(period uint64) *SyncCommittee {
	pubkeys := make([][]byte, SyncCommitteeSize)
	secretKeys := make([]*big.Int, SyncCommitteeSize)
	for i := 0; i < SyncCommitteeSize; i++ {
		// Derive a deterministic secret key from period and index.
		// Use i+1 to avoid zero secret key.
		sk := new(big.Int).SetUint64(period*uint64(SyncCommitteeSize) + uint64(i) + 1)
		secretKeys[i] = sk
		pk := crypto.BLSPubkeyFromSecret(sk)
		pubkeys[i] = pk[:]
	}

	// Compute aggregate pubkey using BLS aggregation.
	aggPK := crypto.AggregatePublicKeys(bls48SlicesTo48Arrays(pubkeys))
	aggPKSlice := aggPK[:]

	return &SyncCommittee{
		Pubkeys:         pubkeys,
		AggregatePubkey: aggPKSlice,
		Period:          period,
		SecretKeys:      secretKeys,
	}
}

// bls48SlicesTo48Arrays converts [][]byte to [][48]byte for BLS operations.
func bls48SlicesTo48Arrays(pubkeys [][]byte) [][48]byte {
	result := make([][48]byte, len(pubkeys))
	for i, pk := range pubkeys {
		if len(pk) >= 48 {
			copy(result[i][:], pk[:48])
		}
	}
	return result
}

// countBits returns the number of set bits in a byte slice.
func countBits(data []byte) int {
	count := 0
	for _, b := range data {
		for i := 0; i < 8; i++ {
			if b&(1<<uint(i)) != 0 {
				count++
			}
		}
	}
	return count
}
