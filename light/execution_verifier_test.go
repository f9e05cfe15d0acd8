package light

import (
	"math/big"
	"testing"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/crypto"
	"github.com/lightforge/ethverify/rlp"
	"github.com/lightforge/ethverify/trie"
)

func TestExecutionVerifier_VerifyAccount(t *testing.T) {
	stateTrie := trie.New()

	addr := types.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	account := &types.Account{
		Nonce:    7,
		Balance:  big.NewInt(500),
		Root:     types.EmptyRootHash,
		CodeHash: types.EmptyCodeHash.Bytes(),
	}
	accountRLP, err := trie.EncodeAccount(account)
	if err != nil {
		t.Fatalf("EncodeAccount: %v", err)
	}
	stateTrie.Put(crypto.Keccak256(addr[:]), accountRLP)

	ev := NewExecutionVerifier(stateTrie.Hash(), types.Hash{})

	accountProof, err := trie.ProveAccount(stateTrie, addr)
	if err != nil {
		t.Fatalf("ProveAccount: %v", err)
	}

	got, err := ev.VerifyAccount(addr, accountProof.AccountProof)
	if err != nil {
		t.Fatalf("VerifyAccount: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil account")
	}
	if got.Nonce != 7 {
		t.Errorf("nonce = %d, want 7", got.Nonce)
	}
	if got.Balance.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("balance = %s, want 500", got.Balance)
	}
}

func TestExecutionVerifier_VerifyAccountAbsence(t *testing.T) {
	stateTrie := trie.New()

	present := types.HexToAddress("0x1111111111111111111111111111111111111111")
	account := &types.Account{Nonce: 1, Balance: big.NewInt(1), Root: types.EmptyRootHash, CodeHash: types.EmptyCodeHash.Bytes()}
	accountRLP, _ := trie.EncodeAccount(account)
	stateTrie.Put(crypto.Keccak256(present[:]), accountRLP)

	ev := NewExecutionVerifier(stateTrie.Hash(), types.Hash{})

	absent := types.HexToAddress("0x2222222222222222222222222222222222222222")
	accountProof, err := trie.ProveAccount(stateTrie, absent)
	if err != nil {
		t.Fatalf("ProveAccount: %v", err)
	}

	got, err := ev.VerifyAccount(absent, accountProof.AccountProof)
	if err != nil {
		t.Fatalf("VerifyAccount: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil account for absence proof, got %+v", got)
	}
}

func TestExecutionVerifier_VerifyAccountBadProof(t *testing.T) {
	stateTrie := trie.New()
	addr := types.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	account := &types.Account{Nonce: 1, Balance: big.NewInt(1), Root: types.EmptyRootHash, CodeHash: types.EmptyCodeHash.Bytes()}
	accountRLP, _ := trie.EncodeAccount(account)
	stateTrie.Put(crypto.Keccak256(addr[:]), accountRLP)

	// Bind the verifier to an unrelated root.
	ev := NewExecutionVerifier(types.HexToHash("0xdeadbeef"), types.Hash{})

	accountProof, err := trie.ProveAccount(stateTrie, addr)
	if err != nil {
		t.Fatalf("ProveAccount: %v", err)
	}

	_, err = ev.VerifyAccount(addr, accountProof.AccountProof)
	if err != ErrExecBadProof {
		t.Errorf("expected ErrExecBadProof, got %v", err)
	}
}

func TestExecutionVerifier_VerifyAccountNilProof(t *testing.T) {
	ev := NewExecutionVerifier(types.Hash{}, types.Hash{})
	_, err := ev.VerifyAccount(types.Address{}, nil)
	if err != ErrExecNilProof {
		t.Errorf("expected ErrExecNilProof, got %v", err)
	}
}

func TestExecutionVerifier_VerifyStorageSlot(t *testing.T) {
	storageTrie := trie.New()
	slot := types.HexToHash("0x01")
	value := big.NewInt(42)
	encoded, err := rlp.EncodeToBytes(value.Bytes())
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	storageTrie.Put(crypto.Keccak256(slot[:]), encoded)

	ev := NewExecutionVerifier(types.Hash{}, types.Hash{})

	proof, err := storageTrie.Prove(crypto.Keccak256(slot[:]))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	got, err := ev.VerifyStorageSlot(storageTrie.Hash(), slot, proof)
	if err != nil {
		t.Fatalf("VerifyStorageSlot: %v", err)
	}
	if got.Cmp(value) != 0 {
		t.Errorf("value = %s, want %s", got, value)
	}
}

// TestExecutionVerifier_VerifyStorageSlotAboveSingleByteRange exercises a
// value whose raw big-endian bytes would be misread if the leaf were
// treated as a bare integer instead of an RLP byte string: 200 RLP-encodes
// to a two-byte string (0x81 0xc8), not the single byte 0xc8.
func TestExecutionVerifier_VerifyStorageSlotAboveSingleByteRange(t *testing.T) {
	storageTrie := trie.New()
	slot := types.HexToHash("0x01")
	value := big.NewInt(200)
	encoded, err := rlp.EncodeToBytes(value.Bytes())
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	storageTrie.Put(crypto.Keccak256(slot[:]), encoded)

	ev := NewExecutionVerifier(types.Hash{}, types.Hash{})

	proof, err := storageTrie.Prove(crypto.Keccak256(slot[:]))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	got, err := ev.VerifyStorageSlot(storageTrie.Hash(), slot, proof)
	if err != nil {
		t.Fatalf("VerifyStorageSlot: %v", err)
	}
	if got.Cmp(value) != 0 {
		t.Errorf("value = %s, want %s", got, value)
	}
}

func TestExecutionVerifier_VerifyAccountWithStorage(t *testing.T) {
	stateTrie := trie.New()
	storageTrie := trie.New()

	slot := types.HexToHash("0x01")
	slotValue := big.NewInt(200)
	encodedSlot, err := rlp.EncodeToBytes(slotValue.Bytes())
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	storageTrie.Put(crypto.Keccak256(slot[:]), encodedSlot)

	addr := types.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	account := &types.Account{
		Nonce:    1,
		Balance:  big.NewInt(10),
		Root:     storageTrie.Hash(),
		CodeHash: types.EmptyCodeHash.Bytes(),
	}
	accountRLP, err := trie.EncodeAccount(account)
	if err != nil {
		t.Fatalf("EncodeAccount: %v", err)
	}
	stateTrie.Put(crypto.Keccak256(addr[:]), accountRLP)

	ev := NewExecutionVerifier(stateTrie.Hash(), types.Hash{})

	accountProof, err := trie.ProveAccount(stateTrie, addr)
	if err != nil {
		t.Fatalf("ProveAccount: %v", err)
	}
	storageProof, err := storageTrie.Prove(crypto.Keccak256(slot[:]))
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	got, err := ev.VerifyAccountWithStorage(addr, accountProof.AccountProof, map[types.Hash][][]byte{
		slot: storageProof,
	})
	if err != nil {
		t.Fatalf("VerifyAccountWithStorage: %v", err)
	}
	if got.Account == nil {
		t.Fatal("expected non-nil account")
	}
	if v, ok := got.Storage[slot]; !ok || v.Cmp(slotValue) != 0 {
		t.Errorf("storage[slot] = %v, want %s", v, slotValue)
	}
}

func TestExecutionVerifier_VerifyAccountWithStorageAbsentAccount(t *testing.T) {
	stateTrie := trie.New()
	present := types.HexToAddress("0x1111111111111111111111111111111111111111")
	account := &types.Account{Nonce: 1, Balance: big.NewInt(1), Root: types.EmptyRootHash, CodeHash: types.EmptyCodeHash.Bytes()}
	accountRLP, _ := trie.EncodeAccount(account)
	stateTrie.Put(crypto.Keccak256(present[:]), accountRLP)

	ev := NewExecutionVerifier(stateTrie.Hash(), types.Hash{})

	absent := types.HexToAddress("0x2222222222222222222222222222222222222222")
	accountProof, err := trie.ProveAccount(stateTrie, absent)
	if err != nil {
		t.Fatalf("ProveAccount: %v", err)
	}

	got, err := ev.VerifyAccountWithStorage(absent, accountProof.AccountProof, nil)
	if err != nil {
		t.Fatalf("VerifyAccountWithStorage: %v", err)
	}
	if got.Account != nil {
		t.Errorf("expected nil account, got %+v", got.Account)
	}
	if got.Storage != nil {
		t.Errorf("expected nil storage map for absent account, got %v", got.Storage)
	}
}

func TestExecutionVerifier_VerifyStorageSlotUnset(t *testing.T) {
	storageTrie := trie.New()
	storageTrie.Put(crypto.Keccak256([]byte("some-other-slot")), big.NewInt(1).Bytes())

	ev := NewExecutionVerifier(types.Hash{}, types.Hash{})

	unsetSlot := types.HexToHash("0x02")
	proof, err := storageTrie.ProveAbsence(crypto.Keccak256(unsetSlot[:]))
	if err != nil {
		t.Fatalf("ProveAbsence: %v", err)
	}

	got, err := ev.VerifyStorageSlot(storageTrie.Hash(), unsetSlot, proof)
	if err != nil {
		t.Fatalf("VerifyStorageSlot: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil value for unset slot, got %s", got)
	}
}

func TestExecutionVerifier_VerifyReceipt(t *testing.T) {
	receiptsTrie := trie.New()

	receipt := types.NewReceipt(types.ReceiptStatusSuccessful, 21000)
	receiptRLP, err := receipt.EncodeRLP()
	if err != nil {
		t.Fatalf("EncodeRLP: %v", err)
	}

	key, err := rlp.EncodeToBytes(uint64(0))
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	receiptsTrie.Put(key, receiptRLP)

	ev := NewExecutionVerifier(types.Hash{}, receiptsTrie.Hash())

	proof, err := receiptsTrie.Prove(key)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	got, err := ev.VerifyReceipt(0, proof)
	if err != nil {
		t.Fatalf("VerifyReceipt: %v", err)
	}
	if !got.Succeeded() {
		t.Error("expected receipt to report success")
	}
	if got.CumulativeGasUsed != 21000 {
		t.Errorf("cumulative gas = %d, want 21000", got.CumulativeGasUsed)
	}
}

func TestExecutionVerifier_VerifyReceiptNilProof(t *testing.T) {
	ev := NewExecutionVerifier(types.Hash{}, types.Hash{})
	_, err := ev.VerifyReceipt(0, nil)
	if err != ErrExecNilProof {
		t.Errorf("expected ErrExecNilProof, got %v", err)
	}
}

func TestVerifyExecutionPayloadBranch(t *testing.T) {
	payloadRoot := crypto.Keccak256Hash([]byte("payload"))
	var leaf [32]byte
	copy(leaf[:], payloadRoot[:])

	branch := make([][32]byte, ExecutionPayloadBranchDepth)
	for i := range branch {
		branch[i] = crypto.Keccak256Hash([]byte{byte(i)})
	}

	bodyRoot := types.Hash(verifyMerkleBranch(leaf, branch, ExecutionPayloadGIndex))

	if err := VerifyExecutionPayloadBranch(bodyRoot, leaf, branch); err != nil {
		t.Fatalf("VerifyExecutionPayloadBranch: %v", err)
	}
}

func TestVerifyExecutionPayloadBranch_WrongDepth(t *testing.T) {
	err := VerifyExecutionPayloadBranch(types.Hash{}, [32]byte{}, nil)
	if err != ErrVerifierDepthExceeded {
		t.Errorf("expected ErrVerifierDepthExceeded, got %v", err)
	}
}

func TestVerifyExecutionPayloadBranch_Mismatch(t *testing.T) {
	branch := make([][32]byte, ExecutionPayloadBranchDepth)
	err := VerifyExecutionPayloadBranch(types.HexToHash("0xdeadbeef"), [32]byte{}, branch)
	if err != ErrVerifierFinalityMismatch {
		t.Errorf("expected ErrVerifierFinalityMismatch, got %v", err)
	}
}
