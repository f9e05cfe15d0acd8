// Command ethverify-demo exercises the verifier core end to end against
// locally generated fixtures: a checkpoint bootstrap, a signed finality
// update, and an account state proof. It does not fetch anything over the
// network -- wiring a real beacon/execution client is left to the embedder.
//
// Usage:
//
//	ethverify-demo [flags]
//
// Flags:
//
//	-loglevel  Log verbosity: debug, info, warn, error (default: "info")
//	-version   Print version and exit
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/lightforge/ethverify/core/types"
	"github.com/lightforge/ethverify/crypto"
	"github.com/lightforge/ethverify/light"
	applog "github.com/lightforge/ethverify/log"
	"github.com/lightforge/ethverify/rlp"
	"github.com/lightforge/ethverify/trie"
)

var version = "v0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("loglevel", "info", "log verbosity (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ethverify-demo %s\n", version)
		return 0
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	applog.SetDefault(applog.New(level))
	logger := applog.Default().Module("demo")

	if err := demoConsensus(logger); err != nil {
		logger.Error("consensus demo failed", "err", err)
		return 1
	}
	if err := demoExecution(logger); err != nil {
		logger.Error("execution demo failed", "err", err)
		return 1
	}

	logger.Info("verifier demo complete")
	return 0
}

// demoConsensus walks checkpoint agreement, bootstrap, and a signed
// finality update through the consensus verifier.
func demoConsensus(logger *applog.Logger) error {
	committee := light.MakeTestSyncCommittee(0)
	committeeRoot := light.ComputeCommitteeRoot(committee.Pubkeys)

	genesis := &light.LightHeader{Slot: 8192}
	bootstrap := &light.LightClientBootstrap{
		Header:           genesis,
		CurrentCommittee: committee,
		CommitteeRoot:    committeeRoot,
	}

	genesisRoot := types.Hash(genesis.HashTreeRoot())
	tracker := light.NewCheckpointTracker()
	if err := tracker.AddVote("bootnode-a.example", 8192, genesisRoot); err != nil {
		return err
	}
	if err := tracker.AddVote("bootnode-b.example", 8192, genesisRoot); err != nil {
		return err
	}
	checkpoint, err := tracker.Resolve(8192)
	if err != nil {
		return err
	}
	logger.Info("checkpoint resolved", "slot", checkpoint.Slot, "sources", tracker.SourceCount(8192))

	state, err := light.BootstrapFromCheckpoint(checkpoint, bootstrap)
	if err != nil {
		return err
	}
	logger.Info("bootstrapped", "slot", state.LastUpdatedSlot)

	store := light.NewMemoryLightStore()
	syncer := light.NewLightSyncer(store)
	syncer.SetCommittee(state.CurrentCommittee)

	finalized := &light.LightHeader{Slot: 8282}
	finalizedRoot := finalized.HashTreeRoot()
	branch := light.BuildFinalityBranch([32]byte{}, finalizedRoot, light.FinalityBranchDepth)
	stateRoot := light.ComputeFinalityStateRoot(finalizedRoot, branch)

	attested := &light.LightHeader{Slot: 8292, StateRoot: stateRoot}
	bits := light.MakeCommitteeBits(400)
	sig := light.SignUpdate(committee, attested, bits)

	update := &light.LightClientUpdate{
		AttestedHeader:    attested,
		FinalizedHeader:   finalized,
		FinalityBranch:    branch,
		SignatureSlot:     attested.Slot + 1,
		SyncCommitteeBits: bits,
		Signature:         sig,
	}
	if err := syncer.ProcessUpdate(update); err != nil {
		return err
	}
	logger.Info("finality advanced", "slot", syncer.State().LastUpdatedSlot,
		"finalized", syncer.GetFinalizedHeader().Slot)
	return nil
}

// demoExecution builds a tiny state trie with one account and a storage
// slot, then verifies both through ExecutionVerifier in a single call.
func demoExecution(logger *applog.Logger) error {
	storageTrie := trie.New()
	slot := types.HexToHash("0x01")
	slotValue := big.NewInt(200) // >= 0x80, exercises the RLP byte-string decode
	encodedSlot, err := rlp.EncodeToBytes(slotValue.Bytes())
	if err != nil {
		return err
	}
	storageTrie.Put(crypto.Keccak256(slot[:]), encodedSlot)

	stateTrie := trie.New()
	addr := types.HexToAddress("0x00000000000000000000000000000000000001")
	account := &types.Account{
		Nonce:    3,
		Balance:  big.NewInt(1_000_000_000_000),
		Root:     storageTrie.Hash(),
		CodeHash: types.EmptyCodeHash.Bytes(),
	}
	accountRLP, err := trie.EncodeAccount(account)
	if err != nil {
		return err
	}
	stateTrie.Put(crypto.Keccak256(addr[:]), accountRLP)

	accountProof, err := trie.ProveAccount(stateTrie, addr)
	if err != nil {
		return err
	}
	storageProof, err := storageTrie.Prove(crypto.Keccak256(slot[:]))
	if err != nil {
		return err
	}

	ev := light.NewExecutionVerifier(stateTrie.Hash(), types.Hash{})
	got, err := ev.VerifyAccountWithStorage(addr, accountProof.AccountProof, map[types.Hash][][]byte{
		slot: storageProof,
	})
	if err != nil {
		return err
	}
	logger.Info("account verified", "address", addr.Hex(), "nonce", got.Account.Nonce, "balance", got.Account.Balance)
	logger.Info("storage slot verified", "slot", slot.Hex(), "value", got.Storage[slot])
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("ethverify-demo: unknown log level %q", s)
	}
}
