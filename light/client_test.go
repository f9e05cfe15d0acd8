package light

import (
	"math/big"
	"testing"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/trie"
)

func TestLightClient_StartStop(t *testing.T) {
	lc := NewLightClient()

	if lc.IsRunning() {
		t.Error("should not be running before Start")
	}

	if err := lc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !lc.IsRunning() {
		t.Error("should be running after Start")
	}

	lc.Stop()
	if lc.IsRunning() {
		t.Error("should not be running after Stop")
	}
}

func TestLightClient_ProcessUpdateWhenStopped(t *testing.T) {
	lc := NewLightClient()
	update := makeValidUpdate(100, 90)

	if err := lc.ProcessUpdate(update); err != ErrClientStopped {
		t.Errorf("expected ErrClientStopped, got %v", err)
	}
}

func TestLightClient_ProcessUpdateWhenRunning(t *testing.T) {
	lc := NewLightClient()
	lc.SetCommittee(testCommittee)
	lc.Start()
	defer lc.Stop()

	update := makeValidUpdate(100, 90)
	if err := lc.ProcessUpdate(update); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}

	if !lc.IsSynced() {
		t.Error("should be synced after valid update")
	}

	finalized := lc.GetFinalizedHeader()
	if finalized == nil {
		t.Fatal("finalized header is nil")
	}
	if finalized.Slot != 90 {
		t.Errorf("finalized slot = %d, want 90", finalized.Slot)
	}
}

func TestLightClient_GetHeaderByNumber(t *testing.T) {
	lc := NewLightClientWithStore(NewMemoryLightStore())
	lc.SetCommittee(testCommittee)
	lc.Start()
	defer lc.Stop()

	header := &types.Header{Number: big.NewInt(90)}
	lc.store.StoreHeader(header)

	got := lc.GetHeaderByNumber(90)
	if got == nil {
		t.Fatal("GetHeaderByNumber(90) returned nil")
	}
	if got.Number.Int64() != 90 {
		t.Errorf("number = %d, want 90", got.Number.Int64())
	}
}

func TestLightClient_VerifyStateProof(t *testing.T) {
	lc := NewLightClient()

	key := []byte("test-key")
	value := []byte("test-value")

	tr := trie.New()
	if err := tr.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	header := &types.Header{Number: big.NewInt(100), Root: tr.Hash()}

	got, err := lc.VerifyStateProof(header, key, proof)
	if err != nil {
		t.Fatalf("VerifyStateProof: %v", err)
	}
	if string(got) != "test-value" {
		t.Errorf("value = %s, want test-value", string(got))
	}
}

func TestLightClient_VerifyStateProofAbsence(t *testing.T) {
	lc := NewLightClient()

	tr := trie.New()
	if err := tr.Put([]byte("present-key"), []byte("present-value")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	key := []byte("absent-key")
	proof, err := tr.ProveAbsence(key)
	if err != nil {
		t.Fatalf("ProveAbsence: %v", err)
	}

	header := &types.Header{Number: big.NewInt(100), Root: tr.Hash()}

	got, err := lc.VerifyStateProof(header, key, proof)
	if err != nil {
		t.Fatalf("VerifyStateProof: %v", err)
	}
	if got != nil {
		t.Errorf("value = %v, want nil for absence proof", got)
	}
}

func TestLightClient_VerifyStateProofInvalid(t *testing.T) {
	lc := NewLightClient()

	key := []byte("test-key")
	value := []byte("test-value")

	tr := trie.New()
	if err := tr.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	header := &types.Header{Number: big.NewInt(100), Root: tr.Hash()}

	// Corrupt the last proof node so it no longer hashes to the expected root.
	corrupted := append([]byte(nil), proof[len(proof)-1]...)
	corrupted[0] ^= 0xff
	proof[len(proof)-1] = corrupted

	_, err = lc.VerifyStateProof(header, key, proof)
	if err != ErrInvalidProof {
		t.Errorf("expected ErrInvalidProof, got %v", err)
	}
}

func TestLightClient_VerifyStateProofNilHeader(t *testing.T) {
	lc := NewLightClient()
	_, err := lc.VerifyStateProof(nil, []byte("key"), nil)
	if err != ErrNoFinalizedHdr {
		t.Errorf("expected ErrNoFinalizedHdr, got %v", err)
	}
}

func TestLightClient_VerifyStateProofWrongRoot(t *testing.T) {
	lc := NewLightClient()

	key := []byte("test-key")
	value := []byte("test-value")

	tr := trie.New()
	if err := tr.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	proof, err := tr.Prove(key)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	// Header claims a root the proof was never built against.
	header := &types.Header{Number: big.NewInt(1), Root: types.HexToHash("0xdeadbeef")}

	_, err = lc.VerifyStateProof(header, key, proof)
	if err != ErrInvalidProof {
		t.Errorf("expected ErrInvalidProof, got %v", err)
	}
}

func TestLightClientWithStore(t *testing.T) {
	store := NewMemoryLightStore()
	lc := NewLightClientWithStore(store)
	lc.SetCommittee(testCommittee)
	lc.Start()
	defer lc.Stop()

	// The store caches execution-layer headers independently of beacon
	// sync state; ProcessUpdate (a beacon-layer operation) does not
	// populate it.
	update := makeValidUpdate(100, 90)
	if err := lc.ProcessUpdate(update); err != nil {
		t.Fatalf("ProcessUpdate: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("store count = %d, want 0", store.Count())
	}

	store.StoreHeader(&types.Header{Number: big.NewInt(90)})
	if store.Count() != 1 {
		t.Errorf("store count = %d, want 1", store.Count())
	}
}

func TestLightClient_Syncer(t *testing.T) {
	lc := NewLightClient()
	if lc.Syncer() == nil {
		t.Error("Syncer() should not be nil")
	}
}
