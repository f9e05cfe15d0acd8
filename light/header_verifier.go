// header_verifier.go implements beacon chain header verification for the light
// client: header chain validation, finality proof checking, and sync
// aggregate verification against a real sync committee signature.
package light

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/lightforge/ethverify/crypto"
	"github.com/lightforge/ethverify/ssz"
)

// Header verifier errors.
var (
	ErrVerifierNilHeader         = errors.New("header_verifier: nil header")
	ErrVerifierEmptyChain        = errors.New("header_verifier: empty header chain")
	ErrVerifierParentMismatch    = errors.New("header_verifier: parent root mismatch")
	ErrVerifierSlotNotIncreasing = errors.New("header_verifier: slot not increasing")
	ErrVerifierNilFinalityProof  = errors.New("header_verifier: nil finality branch")
	ErrVerifierFinalityMismatch  = errors.New("header_verifier: finality proof verification failed")
	ErrVerifierNilAggregate      = errors.New("header_verifier: nil sync aggregate")
	ErrVerifierNilCommittee      = errors.New("header_verifier: nil sync committee")
	ErrVerifierSignatureFailed   = errors.New("header_verifier: sync aggregate signature verification failed")
	ErrVerifierInsufficientPart  = errors.New("header_verifier: insufficient participation (need >= 2/3)")
	ErrVerifierCommitteeEmpty    = errors.New("header_verifier: committee has no pubkeys")
	ErrVerifierDepthExceeded     = errors.New("header_verifier: chain exceeds max verification depth")
)

// FinalityBranchDepth is the depth of the finality branch Merkle proof
// in the beacon state. Per the Altair spec this is 6 levels.
const FinalityBranchDepth = 6

// FinalityBranchIndex is the generalized index of the finalized_checkpoint
// in the beacon state tree. For Altair this is index 105.
const FinalityBranchIndex = 105

// LightHeader represents a beacon chain block header for light client use.
// It mirrors the five-field BeaconBlockHeader container: slot,
// proposer_index, parent_root, state_root, body_root.
type LightHeader struct {
	// Slot is the beacon chain slot number.
	Slot uint64

	// ProposerIndex identifies which validator proposed this block.
	ProposerIndex uint64

	// ParentRoot is the hash tree root of the parent beacon block.
	ParentRoot [32]byte

	// StateRoot is the hash tree root of the beacon state after this block.
	StateRoot [32]byte

	// BodyRoot is the hash tree root of the beacon block body.
	BodyRoot [32]byte
}

// HashTreeRoot computes the SSZ hash tree root of the header container.
// The five field roots are Merkleized with SHA-256, padded to the next
// power of two (8 leaves).
func (h *LightHeader) HashTreeRoot() [32]byte {
	if h == nil {
		return [32]byte{}
	}
	fieldRoots := [][32]byte{
		ssz.HashTreeRootUint64(h.Slot),
		ssz.HashTreeRootUint64(h.ProposerIndex),
		ssz.HashTreeRootBytes32(h.ParentRoot),
		ssz.HashTreeRootBytes32(h.StateRoot),
		ssz.HashTreeRootBytes32(h.BodyRoot),
	}
	return ssz.HashTreeRootContainer(fieldRoots)
}

// SyncAggregate contains the sync committee's aggregate signature over a
// beacon block root. The SyncCommitteeBits bitfield indicates which committee
// members participated in signing.
type SyncAggregate struct {
	// SyncCommitteeBits is a bitfield where each bit indicates whether
	// the corresponding sync committee member signed.
	SyncCommitteeBits []byte

	// Signature is the 96-byte compressed BLS12-381 aggregate signature.
	Signature [96]byte
}

// ParticipationCount returns the number of set bits in the committee bitfield.
func (sa *SyncAggregate) ParticipationCount() int {
	if sa == nil {
		return 0
	}
	count := 0
	for _, b := range sa.SyncCommitteeBits {
		for i := 0; i < 8; i++ {
			if b&(1<<uint(i)) != 0 {
				count++
			}
		}
	}
	return count
}

// VerifierSyncCommittee holds the public keys for a sync committee period.
// It wraps the committee data needed for signature verification.
type VerifierSyncCommittee struct {
	// Pubkeys holds the 48-byte BLS public keys for each committee member.
	Pubkeys [][48]byte

	// AggregatePubkey is the aggregate of all committee member public keys.
	AggregatePubkey [48]byte
}

// Size returns the number of members in the committee.
func (c *VerifierSyncCommittee) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Pubkeys)
}

// HeaderVerifier verifies beacon chain headers for light client operation.
// It maintains a trusted header and sync committee state and validates
// incoming header chains, finality proofs, and sync aggregates.
type HeaderVerifier struct {
	// trustedHeader is the most recently verified header.
	trustedHeader *LightHeader

	// syncCommittee is the current sync committee for signature verification.
	syncCommittee *VerifierSyncCommittee

	// verificationDepth limits the maximum chain length that can be verified
	// in a single call to VerifyHeaderChain.
	verificationDepth int
}

// NewHeaderVerifier creates a new HeaderVerifier with the given trusted header,
// sync committee, and maximum verification depth.
func NewHeaderVerifier(
	trusted *LightHeader,
	committee *VerifierSyncCommittee,
	depth int,
) *HeaderVerifier {
	if depth <= 0 {
		depth = 1024
	}
	return &HeaderVerifier{
		trustedHeader:     trusted,
		syncCommittee:     committee,
		verificationDepth: depth,
	}
}

// TrustedHeader returns the current trusted header.
func (hv *HeaderVerifier) TrustedHeader() *LightHeader {
	return hv.trustedHeader
}

// SetTrustedHeader updates the trusted header after successful verification.
func (hv *HeaderVerifier) SetTrustedHeader(header *LightHeader) {
	hv.trustedHeader = header
}

// SyncCommittee returns the current sync committee.
func (hv *HeaderVerifier) SyncCommittee() *VerifierSyncCommittee {
	return hv.syncCommittee
}

// SetSyncCommittee updates the sync committee after a period rotation.
func (hv *HeaderVerifier) SetSyncCommittee(committee *VerifierSyncCommittee) {
	hv.syncCommittee = committee
}

// VerifyHeaderChain verifies that a sequence of headers forms a valid chain
// with correct parent linkage and increasing slot numbers. Each header's
// ParentRoot must equal the HashTreeRoot of the preceding header. The first
// header must link to the current trusted header.
func (hv *HeaderVerifier) VerifyHeaderChain(headers []*LightHeader) error {
	if len(headers) == 0 {
		return ErrVerifierEmptyChain
	}
	if len(headers) > hv.verificationDepth {
		return ErrVerifierDepthExceeded
	}

	// Verify the first header links to the trusted header.
	if hv.trustedHeader != nil {
		trustedRoot := hv.trustedHeader.HashTreeRoot()
		if headers[0].ParentRoot != trustedRoot {
			return ErrVerifierParentMismatch
		}
		if headers[0].Slot <= hv.trustedHeader.Slot {
			return ErrVerifierSlotNotIncreasing
		}
	}

	// Verify each subsequent header links to its predecessor.
	for i := 1; i < len(headers); i++ {
		if headers[i] == nil {
			return ErrVerifierNilHeader
		}
		prevRoot := headers[i-1].HashTreeRoot()
		if headers[i].ParentRoot != prevRoot {
			return ErrVerifierParentMismatch
		}
		if headers[i].Slot <= headers[i-1].Slot {
			return ErrVerifierSlotNotIncreasing
		}
	}

	return nil
}

// VerifyFinalityProof verifies that a finalized header is included in a beacon
// state by checking its finality branch Merkle proof against the attested
// header's state root. The finalityBranch contains sibling hashes from the
// finalized checkpoint leaf (generalized index FinalityBranchIndex) up to
// the state root, hashed with SHA-256 per the SSZ Merkleization rules.
func (hv *HeaderVerifier) VerifyFinalityProof(
	header *LightHeader,
	finalityBranch [][32]byte,
	finalizedRoot [32]byte,
) error {
	if header == nil {
		return ErrVerifierNilHeader
	}
	if len(finalityBranch) == 0 {
		return ErrVerifierNilFinalityProof
	}

	computed := verifyMerkleBranch(finalizedRoot, finalityBranch, FinalityBranchIndex)
	if computed != header.StateRoot {
		return ErrVerifierFinalityMismatch
	}
	return nil
}

// verifyMerkleBranch walks a generalized-index Merkle branch from a leaf up
// to its root, combining with the supplied sibling hashes using SHA-256.
// The bit pattern of gIndex determines, at each level, whether the running
// hash is the left or right child.
func verifyMerkleBranch(leaf [32]byte, branch [][32]byte, gIndex uint64) [32]byte {
	current := leaf
	for _, sibling := range branch {
		if gIndex%2 == 0 {
			current = ssz.ConcatHash(current, sibling)
		} else {
			current = ssz.ConcatHash(sibling, current)
		}
		gIndex /= 2
	}
	return current
}

// VerifySyncAggregate verifies the sync committee's BLS aggregate signature
// over a signing root. It extracts the participating committee members'
// public keys from the bitfield and runs FastAggregateVerify against the
// aggregate signature.
//
// Returns the number of participating committee members and any error.
func (hv *HeaderVerifier) VerifySyncAggregate(
	aggregate *SyncAggregate,
	signingRoot [32]byte,
	committee *VerifierSyncCommittee,
) (int, error) {
	if aggregate == nil {
		return 0, ErrVerifierNilAggregate
	}
	if committee == nil || len(committee.Pubkeys) == 0 {
		return 0, ErrVerifierNilCommittee
	}

	participationCount := aggregate.ParticipationCount()
	if participationCount == 0 {
		return 0, ErrVerifierInsufficientPart
	}

	participants := make([][48]byte, 0, participationCount)
	for i, pk := range committee.Pubkeys {
		if bitSet(aggregate.SyncCommitteeBits, i) {
			participants = append(participants, pk)
		}
	}

	if !crypto.FastAggregateVerify(participants, signingRoot[:], aggregate.Signature) {
		return 0, ErrVerifierSignatureFailed
	}

	return participationCount, nil
}

// bitSet reports whether bit i is set in the given bitfield.
func bitSet(bits []byte, i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(1<<uint(i%8)) != 0
}

// ComputeSigningRoot computes the signing root for a beacon block header
// by mixing its hash tree root with a domain value, per the consensus
// signing-root convention: signing_root = hash_tree_root(header, domain).
func ComputeSigningRoot(header *LightHeader, domain [32]byte) [32]byte {
	if header == nil {
		return [32]byte{}
	}
	headerRoot := header.HashTreeRoot()
	return ssz.ConcatHash(headerRoot, domain)
}

// CheckSufficientParticipation verifies that the participation count meets
// the 2/3 supermajority threshold required by the beacon chain spec.
// Returns an error if participation is insufficient.
func CheckSufficientParticipation(participationCount, committeeSize int) error {
	if committeeSize == 0 {
		return ErrVerifierCommitteeEmpty
	}
	// participationCount * 3 >= committeeSize * 2
	if participationCount*3 < committeeSize*2 {
		return ErrVerifierInsufficientPart
	}
	return nil
}

// SignSyncAggregate creates a real BLS sync aggregate signature for testing.
// secrets must align with committee.Pubkeys by index; only the secrets at
// positions set in committeeBits are used.
func SignSyncAggregate(
	signingRoot [32]byte,
	committeeBits []byte,
	secrets []*[32]byte,
) [96]byte {
	var sigs [][96]byte
	for i, sk := range secrets {
		if sk == nil || !bitSet(committeeBits, i) {
			continue
		}
		skBig := bytesToBigInt(sk[:])
		sigs = append(sigs, crypto.BLSSign(skBig, signingRoot[:]))
	}
	if len(sigs) == 0 {
		return [96]byte{}
	}
	return crypto.AggregateSignatures(sigs)
}

// MakeVerifierCommitteeBits creates a participation bitfield with the first
// n members marked as participating.
func MakeVerifierCommitteeBits(committeeSize, participants int) []byte {
	bits := make([]byte, (committeeSize+7)/8)
	for i := 0; i < participants && i < committeeSize; i++ {
		bits[i/8] |= 1 << (uint(i) % 8)
	}
	return bits
}

// MakeTestVerifierCommittee creates a test VerifierSyncCommittee with real
// BLS keys derived deterministically from the given size, plus the secret
// keys so callers can produce valid SignSyncAggregate signatures.
func MakeTestVerifierCommittee(size int) (*VerifierSyncCommittee, []*[32]byte) {
	pubkeys := make([][48]byte, size)
	secrets := make([]*[32]byte, size)
	rawPubkeys := make([][48]byte, size)
	for i := 0; i < size; i++ {
		sk := deterministicSecret(i)
		secrets[i] = sk
		pk := crypto.BLSPubkeyFromSecret(bytesToBigInt(sk[:]))
		pubkeys[i] = pk
		rawPubkeys[i] = pk
	}

	agg := crypto.AggregatePublicKeys(rawPubkeys)

	return &VerifierSyncCommittee{
		Pubkeys:         pubkeys,
		AggregatePubkey: agg,
	}, secrets
}

// deterministicSecret derives a BLS secret key seed from an index, for
// reproducible test committees.
func deterministicSecret(i int) *[32]byte {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], uint64(i+1))
	h := crypto.Keccak256(seed[:])
	var sk [32]byte
	copy(sk[:], h)
	return &sk
}

// bytesToBigInt interprets a byte slice as a big-endian unsigned integer.
func bytesToBigInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// BuildFinalityBranch constructs a finality branch Merkle proof for testing:
// depth deterministic sibling values, each the SHA-256 of stateRoot,
// finalizedRoot and the level index. Pair with ComputeFinalityStateRoot to obtain the
// matching state root for a header fixture.
func BuildFinalityBranch(stateRoot [32]byte, finalizedRoot [32]byte, depth int) [][32]byte {
	if depth <= 0 {
		depth = FinalityBranchDepth
	}
	siblings := make([][32]byte, depth)
	for i := 0; i < depth; i++ {
		seed := make([]byte, 0, 72)
		seed = append(seed, stateRoot[:]...)
		seed = append(seed, finalizedRoot[:]...)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		seed = append(seed, buf[:]...)
		siblings[i] = ssz.SHA256(seed)
	}
	return siblings
}

// ComputeFinalityStateRoot computes the state root that results from
// verifying a finality branch. This is useful for constructing matching
// test data: build the branch, derive the state root here, and set it on
// the header fixture before calling VerifyFinalityProof.
func ComputeFinalityStateRoot(finalizedRoot [32]byte, finalityBranch [][32]byte) [32]byte {
	return verifyMerkleBranch(finalizedRoot, finalityBranch, FinalityBranchIndex)
}
