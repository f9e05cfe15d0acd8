// BLS12-381 signature verification for the Ethereum consensus layer.
//
// This file provides the BLSBackend interface used throughout the light
// client and its single production implementation, BlstRealBackend, backed
// by github.com/supranational/blst.
//
// Known Ethereum BLS constants are included for format validation.
//
// Ethereum BLS signature scheme (MinPk variant):
//   - Public keys in G1 (48-byte compressed)
//   - Signatures in G2 (96-byte compressed)
//   - DST: BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_
//   - Hash-to-curve: SHA-256 based expand_message_xmd
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// Key and signature sizes for the MinPk scheme.
const (
	BLSPubkeySize    = 48 // compressed G1
	BLSSignatureSize = 96 // compressed G2
)

// blsFieldModulus is the BLS12-381 base field prime p, used to bound-check
// the x-coordinate of a compressed G1 point during format validation.
var blsFieldModulus, _ = new(big.Int).SetString(
	"1a0111ea397fe69a4b1ba7b6434bacd764774b84f38512bf6730d2a0f6b0f6241eabfffeb153ffffb9feffffffffaaab", 16)

// BLS12-381 well-known constants from the Ethereum consensus spec.
var (
	// BLSG1GeneratorCompressed is the compressed form of the BLS12-381 G1
	// generator point (48 bytes).
	BLSG1GeneratorCompressed = mustDecodeHex48(
		"97f1d3a73197d7942695638c4fa9ac0fc3688c4f9774b905a14e3a3f171bac586c55e83ff97a1aeffb3af00adb22c6bb")

	// BLSG2GeneratorCompressed is the compressed form of the BLS12-381 G2
	// generator point (96 bytes).
	BLSG2GeneratorCompressed = mustDecodeHex96(
		"93e02b6052719f607dacd3a088274f65596bd0d09920b61ab5da61bbdc7f5049334cf11213945d57e5ac7d055d042b7e" +
			"024aa2b2f08f0a91260805272dc51051c6e47ad4fa403b02b4510b647ae3d1770bac0326a805bbefd48056c8c121bdb8")

	// BLSPointAtInfinityG1 is the compressed form of the G1 point at
	// infinity (48 bytes, 0xc0 followed by zeros).
	BLSPointAtInfinityG1 = func() [48]byte {
		var b [48]byte
		b[0] = 0xc0
		return b
	}()

	// BLSPointAtInfinityG2 is the compressed form of the G2 point at
	// infinity (96 bytes, 0xc0 followed by zeros).
	BLSPointAtInfinityG2 = func() [96]byte {
		var b [96]byte
		b[0] = 0xc0
		return b
	}()

	// BLSSignatureDST is the domain separation tag used for Ethereum BLS
	// signatures under the proof-of-possession scheme.
	BLSSignatureDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

	// BLSSubgroupOrder is the order r of the BLS12-381 G1/G2 subgroups.
	BLSSubgroupOrder, _ = new(big.Int).SetString(
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)
)

// BLS format validation errors.
var (
	ErrBLSInvalidPubkeyLen    = errors.New("bls: pubkey must be 48 bytes")
	ErrBLSInvalidPubkeyFormat = errors.New("bls: invalid compressed G1 format")
	ErrBLSInvalidPubkeyInf    = errors.New("bls: pubkey is point at infinity")
	ErrBLSInvalidSigLen       = errors.New("bls: signature must be 96 bytes")
	ErrBLSInvalidSigFormat    = errors.New("bls: invalid compressed G2 format")
)

// BLSBackend is the interface for BLS12-381 signature verification
// operations required by the light client's sync committee checks.
type BLSBackend interface {
	// Verify checks a single BLS signature.
	// pubkey: 48-byte compressed G1, msg: arbitrary message, sig: 96-byte compressed G2.
	Verify(pubkey, msg, sig []byte) bool

	// AggregateVerify checks an aggregate signature where each signer signed
	// a different message. pubkeys[i] signed msgs[i], and sig is the aggregate.
	AggregateVerify(pubkeys, msgs [][]byte, sig []byte) bool

	// FastAggregateVerify checks an aggregate signature where all signers
	// signed the same message. This is the path used for sync committee
	// attestations over a single signing root.
	FastAggregateVerify(pubkeys [][]byte, msg, sig []byte) bool

	// Name returns a human-readable name for the backend.
	Name() string
}

// activeBLSBackend is the currently selected BLS backend. The default is
// the real blst-backed implementation; tests may swap in a fake via
// SetBLSBackend to exercise caller logic without paying for pairings.
var (
	activeBLSMu      sync.RWMutex
	activeBLSBackend BLSBackend = &BlstRealBackend{}
)

// DefaultBLSBackend returns the currently active BLS backend.
func DefaultBLSBackend() BLSBackend {
	activeBLSMu.RLock()
	defer activeBLSMu.RUnlock()
	return activeBLSBackend
}

// SetBLSBackend sets the active BLS backend. Safe for concurrent use.
// Passing nil resets to the default blst-backed backend.
func SetBLSBackend(b BLSBackend) {
	activeBLSMu.Lock()
	defer activeBLSMu.Unlock()
	if b == nil {
		b = &BlstRealBackend{}
	}
	activeBLSBackend = b
}

// BLSIntegrationStatus returns the name of the currently active BLS backend.
func BLSIntegrationStatus() string {
	return DefaultBLSBackend().Name()
}

// BLSVerifyWithBackend verifies a BLS signature using the specified backend.
func BLSVerifyWithBackend(backend BLSBackend, pubkey, msg, sig []byte) bool {
	if backend == nil {
		return false
	}
	return backend.Verify(pubkey, msg, sig)
}

// ValidateBLSPubkey validates a 48-byte compressed G1 public key.
// It checks length, compression flag, and that the point is not the identity.
func ValidateBLSPubkey(pubkey []byte) error {
	if len(pubkey) != BLSPubkeySize {
		return ErrBLSInvalidPubkeyLen
	}
	// Compression flag (bit 7 of first byte) must be set.
	if pubkey[0]&0x80 == 0 {
		return ErrBLSInvalidPubkeyFormat
	}
	// Infinity flag (bit 6): if set, this is the point at infinity, which
	// is not a valid sync committee public key.
	if pubkey[0]&0x40 != 0 {
		return ErrBLSInvalidPubkeyInf
	}
	// Extract x coordinate (clear flag bits) and check it is less than p.
	buf := make([]byte, BLSPubkeySize)
	copy(buf, pubkey)
	buf[0] &= 0x1F
	x := new(big.Int).SetBytes(buf)
	if x.Cmp(blsFieldModulus) >= 0 {
		return ErrBLSInvalidPubkeyFormat
	}
	return nil
}

// ValidateBLSSignature validates a 96-byte compressed G2 signature.
// It checks length and the compression flag.
func ValidateBLSSignature(sig []byte) error {
	if len(sig) != BLSSignatureSize {
		return ErrBLSInvalidSigLen
	}
	// Compression flag must be set.
	if sig[0]&0x80 == 0 {
		return ErrBLSInvalidSigFormat
	}
	return nil
}

func mustDecodeHex48(s string) [48]byte {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 48 {
		panic(fmt.Sprintf("invalid hex for 48-byte value: %s", s))
	}
	var out [48]byte
	copy(out[:], b)
	return out
}

func mustDecodeHex96(s string) [96]byte {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 96 {
		panic(fmt.Sprintf("invalid hex for 96-byte value: %s", s))
	}
	var out [96]byte
	copy(out[:], b)
	return out
}
