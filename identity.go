// BSD 3-Clause License
//
// Copyright (c) 2024, Highlander Authors
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package highlander

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec/v2"
)

// IdentitySize is the length in bytes of a compressed secp256k1 public key.
const IdentitySize = 33

// PeerIdentity is a compressed secp256k1 public key. It serves as both a
// peer's stable identity and its total ordering key (lexicographic byte
// compare), as required by spec §3.
type PeerIdentity [IdentitySize]byte

// IdentityFromPublicKey derives a PeerIdentity from an ECDSA public key on
// the secp256k1 curve.
func IdentityFromPublicKey(pub *ecdsa.PublicKey) PeerIdentity {
	pk := btcec.PublicKey{Curve: pub.Curve, X: pub.X, Y: pub.Y}
	var id PeerIdentity
	copy(id[:], pk.SerializeCompressed())
	return id
}

// PublicKey reconstructs the secp256k1 public key from its compressed
// encoding. Returns ErrCryptoKeyGen if the encoding is malformed.
func (id PeerIdentity) PublicKey() (*ecdsa.PublicKey, error) {
	pub, err := btcec.ParsePubKey(id[:])
	if err != nil {
		return nil, ErrCryptoKeyGen
	}
	return pub.ToECDSA(), nil
}

// Less implements the total order over identities: lexicographic byte
// compare, used for bracket tiebreaks and genesis-author selection.
func (id PeerIdentity) Less(other PeerIdentity) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// IsZero reports whether this identity is the zero value (used to detect
// an unset field, never a valid identity).
func (id PeerIdentity) IsZero() bool {
	var zero PeerIdentity
	return id == zero
}

// SortIdentities returns a new, ascending-sorted copy of ids.
func SortIdentities(ids []PeerIdentity) []PeerIdentity {
	out := make([]PeerIdentity, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Less(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// SmallestIdentity returns the lexicographically smallest identity among
// ids. Used to pick the genesis author among the founding peer set
// (spec §3, chain invariant 4).
func SmallestIdentity(ids []PeerIdentity) PeerIdentity {
	smallest := ids[0]
	for _, id := range ids[1:] {
		if id.Less(smallest) {
			smallest = id
		}
	}
	return smallest
}
