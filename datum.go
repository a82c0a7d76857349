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

import "crypto/ecdsa"

// PendingDatum is an application payload signed by its originator, awaiting
// inclusion in a block (spec §3). It deduplicates in memory by Signature.
type PendingDatum struct {
	Author    PeerIdentity
	Payload   []byte
	Signature []byte
}

// datumHash is the preimage signed by a datum's author:
// sha256(author_pubkey || payload), per spec §3.
func datumHash(author PeerIdentity, payload []byte) [32]byte {
	return SHA256(author[:], payload)
}

// SignDatum builds and signs a PendingDatum authored by priv.
func SignDatum(priv *ecdsa.PrivateKey, payload []byte) (PendingDatum, error) {
	author := IdentityFromPublicKey(&priv.PublicKey)
	hash := datumHash(author, payload)
	sig, err := Sign(priv, hash[:])
	if err != nil {
		return PendingDatum{}, err
	}
	return PendingDatum{Author: author, Payload: payload, Signature: sig}, nil
}

// Verify checks the datum's author signature (chain invariant 6, spec §3).
func (d PendingDatum) Verify() bool {
	pub, err := d.Author.PublicKey()
	if err != nil {
		return false
	}
	hash := datumHash(d.Author, d.Payload)
	return Verify(pub, hash[:], d.Signature)
}

// Key returns the in-memory dedup key for this datum: its raw signature
// bytes converted to a string, usable as a comparable map key.
func (d PendingDatum) Key() string { return string(d.Signature) }

func encodeDatum(e *Encoder, d PendingDatum) {
	e.WriteFixed(d.Author[:])
	e.WriteBytes(d.Payload)
	e.WriteBytes(d.Signature)
}

func decodeDatum(d *Decoder) (PendingDatum, error) {
	var out PendingDatum
	idBytes, err := d.ReadFixed(IdentitySize)
	if err != nil {
		return out, err
	}
	copy(out.Author[:], idBytes)

	out.Payload, err = d.ReadBytes()
	if err != nil {
		return out, err
	}
	out.Signature, err = d.ReadBytes()
	if err != nil {
		return out, err
	}
	return out, nil
}

// SortData returns data sorted by Signature, for canonical block encoding
// (spec §3: "data... canonicalized by sorting on signature").
func SortData(data []PendingDatum) []PendingDatum {
	out := make([]PendingDatum, len(data))
	copy(out, data)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && string(out[j].Signature) < string(out[j-1].Signature); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
