package light

import (
	"errors"

	"github.com/lightforge/ethverify/core/types"
)

var (
	ErrNoUpdate          = errors.New("light: nil update")
	ErrNoAttestedHeader  = errors.New("light: update missing attested header")
	ErrNoFinalizedHeader = errors.New("light: update missing finalized header")
	ErrNoSignature       = errors.New("light: update missing signature")
	ErrInsufficientSigs  = errors.New("light: insufficient sync committee signatures")
	ErrNotFinalized      = errors.New("light: finalized header slot exceeds attested")
	ErrSyncerNoCommittee = errors.New("light: syncer has no sync committee installed")
)

// SyncCommitteeSize is the number of validators in a sync committee.
const SyncCommitteeSize = 512

// LightSyncer processes light client updates and maintains the
// finalized chain view. It delegates the cryptographic transition to
// ProcessIncrementalUpdate and translates its errors into the syncer's
// own, more granular error vocabulary.
type LightSyncer struct {
	state *LightClientState
	store LightStore
}

// NewLightSyncer creates a new LightSyncer with the given store. It has no
// sync committee installed until SetCommittee or a bootstrap is applied;
// ProcessUpdate refuses updates until one is present. store caches
// execution-layer headers independently of the beacon sync state; it is
// no longer populated automatically by ProcessUpdate.
func NewLightSyncer(store LightStore) *LightSyncer {
	return &LightSyncer{
		state: &LightClientState{},
		store: store,
	}
}

// SetCommittee installs the sync committee used to verify subsequent
// updates' aggregate signatures.
func (ls *LightSyncer) SetCommittee(committee *SyncCommittee) {
	ls.state.CurrentCommittee = committee
}

// ApplyBootstrap initializes the syncer's state from a trusted bootstrap,
// verified against trustedRoot (the independently-agreed beacon block
// root for the checkpoint).
func (ls *LightSyncer) ApplyBootstrap(bootstrap *LightClientBootstrap, trustedRoot types.Hash) error {
	state, err := ProcessBootstrap(bootstrap, trustedRoot)
	if err != nil {
		return err
	}
	ls.state = state
	return nil
}

// ProcessUpdate validates and applies a light client update. It checks for
// the presence of the required fields using its own error vocabulary, then
// delegates the cryptographic and structural verification to
// ProcessIncrementalUpdate.
func (ls *LightSyncer) ProcessUpdate(update *LightClientUpdate) error {
	if update == nil {
		return ErrNoUpdate
	}
	if update.AttestedHeader == nil {
		return ErrNoAttestedHeader
	}
	if update.FinalizedHeader == nil {
		return ErrNoFinalizedHeader
	}
	if len(update.Signature) == 0 {
		return ErrNoSignature
	}
	if ls.state.CurrentCommittee == nil {
		return ErrSyncerNoCommittee
	}

	if err := ProcessIncrementalUpdate(ls.state, update); err != nil {
		switch err {
		case ErrInvalidSignature, ErrBadSignatureSlot:
			return ErrNoSignature
		case ErrInsufficientParticipation, ErrBitfieldWrongLength:
			return ErrInsufficientSigs
		default:
			return err
		}
	}

	return nil
}

// GetFinalizedHeader returns the most recent finalized header.
func (ls *LightSyncer) GetFinalizedHeader() *LightHeader {
	return ls.state.FinalizedHeader
}

// IsSynced returns true if the light client has a finalized header.
func (ls *LightSyncer) IsSynced() bool {
	return ls.state.FinalizedHeader != nil
}

// State returns the current light client state.
func (ls *LightSyncer) State() *LightClientState {
	return ls.state
}

// SignUpdate produces the BLS aggregate signature a committee would attach
// to an update attesting to header, for the given participation bitfield,
// using the zero-value fork version and genesis validators root domain.
// Used in tests to build valid updates against a LightClientState that
// has not overridden those fields.
func SignUpdate(committee *SyncCommittee, header *LightHeader, committeeBits []byte) []byte {
	domain := ComputeDomain(DomainSyncCommittee, [4]byte{}, [32]byte{})
	signingRoot := ComputeSigningRoot(header, domain)
	return SignSyncCommittee(committee, types.Hash(signingRoot), committeeBits)
}

// MakeCommitteeBits creates a sync committee participation bitfield with
// the given number of signers (from bit 0 upward).
func MakeCommitteeBits(signers int) []byte {
	bits := make([]byte, (SyncCommitteeSize+7)/8)
	for i := 0; i < signers && i < SyncCommitteeSize; i++ {
		bits[i/8] |= 1 << (uint(i) % 8)
	}
	return bits
}

// makeHeader is a test helper that creates a beacon header at the given slot.
func makeHeader(slot uint64) *LightHeader {
	return &LightHeader{Slot: slot}
}
