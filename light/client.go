package light

import (
	"errors"
	"sync"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/trie"
)

var (
	ErrClientStopped  = errors.New("light: client is stopped")
	ErrInvalidProof   = errors.New("light: invalid state proof")
	ErrNoFinalizedHdr = errors.New("light: no finalized header available")
)

// LightClient provides a high-level API for light client operations.
// It manages syncing, header storage, and state proof verification.
type LightClient struct {
	syncer  *LightSyncer
	store   LightStore
	running bool
	mu      sync.RWMutex
}

// NewLightClient creates a new LightClient with an in-memory store.
func NewLightClient() *LightClient {
	store := NewMemoryLightStore()
	return &LightClient{
		syncer: NewLightSyncer(store),
		store:  store,
	}
}

// NewLightClientWithStore creates a LightClient with a custom store.
func NewLightClientWithStore(store LightStore) *LightClient {
	return &LightClient{
		syncer: NewLightSyncer(store),
		store:  store,
	}
}

// Start initializes the light client. Returns an error if already running.
func (lc *LightClient) Start() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.running {
		return errors.New("light: client is already running")
	}
	lc.running = true
	return nil
}

// Stop shuts down the light client.
func (lc *LightClient) Stop() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.running = false
}

// IsRunning returns whether the client is started.
func (lc *LightClient) IsRunning() bool {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.running
}

// SetCommittee installs the sync committee used to verify subsequent
// updates, typically obtained from a trusted checkpoint bootstrap.
func (lc *LightClient) SetCommittee(committee *SyncCommittee) {
	lc.syncer.SetCommittee(committee)
}

// ProcessUpdate forwards a light client update to the syncer.
func (lc *LightClient) ProcessUpdate(update *LightClientUpdate) error {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	if !lc.running {
		return ErrClientStopped
	}
	return lc.syncer.ProcessUpdate(update)
}

// GetFinalizedHeader returns the latest finalized beacon header.
func (lc *LightClient) GetFinalizedHeader() *LightHeader {
	return lc.syncer.GetFinalizedHeader()
}

// IsSynced returns whether the client has synced a finalized header.
func (lc *LightClient) IsSynced() bool {
	return lc.syncer.IsSynced()
}

// GetHeader retrieves a stored header by hash.
func (lc *LightClient) GetHeader(hash types.Hash) *types.Header {
	return lc.store.GetHeader(hash)
}

// GetHeaderByNumber retrieves a stored header by block number.
func (lc *LightClient) GetHeaderByNumber(num uint64) *types.Header {
	return lc.store.GetByNumber(num)
}

// VerifyStateProof verifies a Merkle-Patricia trie inclusion proof for key
// against a header's state root. key must already be the trie key (e.g.
// keccak256(address) for an account proof, keccak256(slot) for a storage
// proof) -- VerifyStateProof does not hash it. Returns the proven value, or
// (nil, nil) if the proof validly demonstrates the key's absence.
func (lc *LightClient) VerifyStateProof(header *types.Header, key []byte, proof [][]byte) ([]byte, error) {
	if header == nil {
		return nil, ErrNoFinalizedHdr
	}
	value, err := trie.VerifyProof(header.Root, key, proof)
	if err != nil {
		return nil, ErrInvalidProof
	}
	return value, nil
}

// Syncer returns the underlying LightSyncer.
func (lc *LightClient) Syncer() *LightSyncer {
	return lc.syncer
}
