package light

import (
	"errors"
	"math/big"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/crypto"
	"github.com/lightforge/ethverify/rlp"
	"github.com/lightforge/ethverify/trie"
)

// Execution verifier errors.
var (
	ErrExecNilProof      = errors.New("light: nil execution proof")
	ErrExecBadProof      = errors.New("light: execution proof failed verification")
	ErrExecBadAccountRLP = errors.New("light: account leaf is not valid RLP")
	ErrExecBadReceiptRLP = errors.New("light: receipt leaf is not valid RLP")
	ErrExecBadStorageRLP = errors.New("light: storage leaf is not valid RLP")
)

// ExecutionVerifier verifies Merkle-Patricia trie proofs against the
// execution state root and receipts root it was constructed with.
// It never trusts a state root on its own: StateRoot and ReceiptsRoot must
// already have been authenticated by the consensus verifier (either via
// the attested header's ExecutionPayloadHeader branch, or because the
// caller otherwise trusts the header they came from).
type ExecutionVerifier struct {
	StateRoot    types.Hash
	ReceiptsRoot types.Hash
}

// NewExecutionVerifier binds an ExecutionVerifier to a consensus-verified
// state root and receipts root.
func NewExecutionVerifier(stateRoot, receiptsRoot types.Hash) *ExecutionVerifier {
	return &ExecutionVerifier{StateRoot: stateRoot, ReceiptsRoot: receiptsRoot}
}

// VerifyAccount verifies an MPT inclusion/absence proof for addr against
// the bound state root and returns the decoded account. A nil *types.Account
// with a nil error indicates a valid absence proof (the account does not
// exist).
func (ev *ExecutionVerifier) VerifyAccount(addr types.Address, proof [][]byte) (*types.Account, error) {
	if proof == nil {
		return nil, ErrExecNilProof
	}
	key := crypto.Keccak256(addr[:])
	value, err := trie.VerifyProof(ev.StateRoot, key, proof)
	if err != nil {
		return nil, ErrExecBadProof
	}
	if value == nil {
		return nil, nil
	}
	account, err := trie.DecodeAccount(value)
	if err != nil {
		return nil, ErrExecBadAccountRLP
	}
	return account, nil
}

// VerifyStorageSlot verifies an MPT inclusion/absence proof for a storage
// slot against account's storage root (obtained from a prior VerifyAccount
// call) and returns the slot's value. A nil value with a nil error
// indicates the slot is unset (its implicit value is zero). The trie leaf
// is the RLP encoding of the slot's value as a single byte string, not a
// raw big-endian integer, so it must be RLP-decoded before use.
func (ev *ExecutionVerifier) VerifyStorageSlot(storageRoot types.Hash, slot types.Hash, proof [][]byte) (*big.Int, error) {
	if proof == nil {
		return nil, ErrExecNilProof
	}
	key := crypto.Keccak256(slot[:])
	value, err := trie.VerifyProof(storageRoot, key, proof)
	if err != nil {
		return nil, ErrExecBadProof
	}
	if value == nil {
		return nil, nil
	}
	var result big.Int
	if err := rlp.DecodeBytes(value, &result); err != nil {
		return nil, ErrExecBadStorageRLP
	}
	return &result, nil
}

// VerifiedAccountState is an account, verified against the bound state
// root, together with a set of its storage slots verified against that
// account's own storage root in the same call.
type VerifiedAccountState struct {
	Address types.Address
	Account *types.Account
	Storage map[types.Hash]*big.Int
}

// VerifyAccountWithStorage verifies an account inclusion proof and, if the
// account exists, a set of storage slot proofs against that account's
// storage root. Slots whose proof demonstrates absence are simply omitted
// from the result's Storage map rather than stored as zero. The storage
// slots are checked in one batch via trie.VerifyMultiProof, which keys each
// item by its keccak256-hashed slot so every proof is validated against the
// same storage root in a single pass.
func (ev *ExecutionVerifier) VerifyAccountWithStorage(
	addr types.Address,
	accountProof [][]byte,
	storageProofs map[types.Hash][][]byte,
) (*VerifiedAccountState, error) {
	account, err := ev.VerifyAccount(addr, accountProof)
	if err != nil {
		return nil, err
	}
	result := &VerifiedAccountState{Address: addr, Account: account}
	if account == nil || len(storageProofs) == 0 {
		return result, nil
	}

	slots := make([]types.Hash, 0, len(storageProofs))
	items := make([]trie.MultiProofItem, 0, len(storageProofs))
	for slot, proof := range storageProofs {
		slots = append(slots, slot)
		items = append(items, trie.MultiProofItem{Key: crypto.Keccak256(slot[:]), Proof: proof})
	}

	multi, err := trie.VerifyMultiProof(account.Root, items)
	if err != nil {
		return nil, ErrExecBadProof
	}

	result.Storage = make(map[types.Hash]*big.Int, len(storageProofs))
	for i, slot := range slots {
		raw := multi.Results[i].Value
		if raw == nil {
			continue
		}
		var value big.Int
		if err := rlp.DecodeBytes(raw, &value); err != nil {
			return nil, ErrExecBadStorageRLP
		}
		result.Storage[slot] = &value
	}
	return result, nil
}

// VerifyReceipt verifies an MPT inclusion proof for the transaction at
// txIndex against the bound receipts root and returns the decoded receipt.
// Unlike the state and storage tries, the receipts trie is keyed directly
// by the RLP encoding of the transaction index -- it is not a secure trie,
// so the key is not keccak-hashed.
func (ev *ExecutionVerifier) VerifyReceipt(txIndex uint64, proof [][]byte) (*types.Receipt, error) {
	if proof == nil {
		return nil, ErrExecNilProof
	}
	key, err := rlp.EncodeToBytes(txIndex)
	if err != nil {
		return nil, err
	}
	value, err := trie.VerifyProof(ev.ReceiptsRoot, key, proof)
	if err != nil {
		return nil, ErrExecBadProof
	}
	if value == nil {
		return nil, nil
	}
	receipt, err := types.DecodeReceiptRLP(value)
	if err != nil {
		return nil, ErrExecBadReceiptRLP
	}
	return receipt, nil
}

// ExecutionPayloadBranchDepth and ExecutionPayloadGIndex locate the
// execution payload header within the attested beacon block's BodyRoot,
// binding StateRoot/ReceiptsRoot cryptographically instead of taking them
// on faith from an out-of-band source.
const (
	ExecutionPayloadBranchDepth = 4
	ExecutionPayloadGIndex      = 25
)

// VerifyExecutionPayloadBranch checks that payloadRoot (the SSZ
// hash_tree_root of an ExecutionPayloadHeader) is included in bodyRoot at
// the execution payload's generalized index.
func VerifyExecutionPayloadBranch(bodyRoot types.Hash, payloadRoot [32]byte, branch [][32]byte) error {
	if len(branch) != ExecutionPayloadBranchDepth {
		return ErrVerifierDepthExceeded
	}
	computed := verifyMerkleBranch(payloadRoot, branch, ExecutionPayloadGIndex)
	if types.Hash(computed) != bodyRoot {
		return ErrVerifierFinalityMismatch
	}
	return nil
}
