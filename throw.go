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

// Throw is one of Rock, Paper, Scissors (spec §3 glossary: "throw vector").
type Throw byte

const (
	Rock Throw = iota
	Paper
	Scissors
)

func (t Throw) String() string {
	switch t {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	default:
		return "invalid"
	}
}

// Beats reports whether t beats other under standard rock-paper-scissors
// rules (spec §4.7).
func (t Throw) Beats(other Throw) bool {
	return (t == Rock && other == Scissors) ||
		(t == Scissors && other == Paper) ||
		(t == Paper && other == Rock)
}

// ThrowVector is a peer's full pre-committed sequence of throws, one per
// tournament level it might reach (spec §3, §4.7).
type ThrowVector []Throw

// DeriveThrowVector deterministically derives a throw vector of length
// levels from sha256(round_seed || privkey scalar), per spec §9's
// preference for auditable, non-random throws.
func DeriveThrowVector(priv *ecdsa.PrivateKey, roundSeed [32]byte, levels int) ThrowVector {
	digest := SHA256(roundSeed[:], priv.D.Bytes())
	out := make(ThrowVector, levels)
	for i := 0; i < levels; i++ {
		// Re-hash once the 32-byte digest is exhausted so arbitrarily deep
		// brackets still get fresh bytes.
		b := digest[i%len(digest)]
		if i >= len(digest) {
			digest = SHA256(digest[:])
			b = digest[i%len(digest)]
		}
		out[i] = Throw(b % 3)
	}
	return out
}

func encodeThrowVector(e *Encoder, throws ThrowVector) {
	e.WriteUint32(uint32(len(throws)))
	for _, t := range throws {
		e.WriteByte(byte(t))
	}
}

func decodeThrowVector(d *Decoder) (ThrowVector, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make(ThrowVector, n)
	for i := range out {
		b, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		if b > byte(Scissors) {
			return nil, ErrProtocolBadFrame
		}
		out[i] = Throw(b)
	}
	return out, nil
}
