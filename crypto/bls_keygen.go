// Deterministic BLS key derivation and aggregation helpers built on blst.
//
// These are used by sync committee test fixtures, which historically
// worked with raw big.Int secret keys rather than the 32-byte IKM that
// BlstKeyGen expects. They wrap the same blst primitives used by
// BlstRealBackend.
package crypto

import (
	"math/big"

	blst "github.com/supranational/blst/bindings/go"
)

// secretKeyFromBigInt serializes a big.Int scalar into a 32-byte
// big-endian buffer and deserializes it into a blst secret key.
func secretKeyFromBigInt(sk *big.Int) *blst.SecretKey {
	var buf [blstSecretSize]byte
	b := sk.Bytes()
	if len(b) > blstSecretSize {
		b = b[len(b)-blstSecretSize:]
	}
	copy(buf[blstSecretSize-len(b):], b)
	return new(blst.SecretKey).Deserialize(buf[:])
}

// BLSPubkeyFromSecret derives the compressed G1 public key for a secret
// key scalar.
func BLSPubkeyFromSecret(sk *big.Int) [BLSPubkeySize]byte {
	var out [BLSPubkeySize]byte
	secret := secretKeyFromBigInt(sk)
	if secret == nil {
		return out
	}
	pk := new(blst.P1Affine).From(secret)
	copy(out[:], pk.Compress())
	return out
}

// BLSSign signs msg with the given secret key scalar, returning a
// compressed G2 signature under the Ethereum consensus DST.
func BLSSign(sk *big.Int, msg []byte) [BLSSignatureSize]byte {
	var out [BLSSignatureSize]byte
	secret := secretKeyFromBigInt(sk)
	if secret == nil {
		return out
	}
	sig := new(blst.P2Affine).Sign(secret, msg, blstDST)
	if sig == nil {
		return out
	}
	copy(out[:], sig.Compress())
	return out
}

// AggregateSignatures aggregates compressed G2 signatures into a single
// compressed aggregate signature. Returns the zero value if sigs is empty
// or aggregation fails.
func AggregateSignatures(sigs [][BLSSignatureSize]byte) [BLSSignatureSize]byte {
	var out [BLSSignatureSize]byte
	if len(sigs) == 0 {
		return out
	}
	raw := make([][]byte, len(sigs))
	for i := range sigs {
		raw[i] = sigs[i][:]
	}
	agg := new(blst.P2Aggregate)
	if !agg.AggregateCompressed(raw, true) {
		return out
	}
	copy(out[:], agg.ToAffine().Compress())
	return out
}

// AggregatePublicKeys aggregates compressed G1 public keys into a single
// compressed aggregate public key. Returns the zero value if pubkeys is
// empty or aggregation fails.
func AggregatePublicKeys(pubkeys [][BLSPubkeySize]byte) [BLSPubkeySize]byte {
	var out [BLSPubkeySize]byte
	if len(pubkeys) == 0 {
		return out
	}
	raw := make([][]byte, len(pubkeys))
	for i := range pubkeys {
		raw[i] = pubkeys[i][:]
	}
	agg := new(blst.P1Aggregate)
	if !agg.AggregateCompressed(raw, true) {
		return out
	}
	copy(out[:], agg.ToAffine().Compress())
	return out
}

// FastAggregateVerify checks an aggregate signature where every pubkey
// signed the same message, using the default active backend.
func FastAggregateVerify(pubkeys [][BLSPubkeySize]byte, msg []byte, sig [BLSSignatureSize]byte) bool {
	raw := make([][]byte, len(pubkeys))
	for i := range pubkeys {
		raw[i] = pubkeys[i][:]
	}
	return DefaultBLSBackend().FastAggregateVerify(raw, msg, sig[:])
}
