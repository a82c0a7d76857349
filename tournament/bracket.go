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

// Package tournament implements the Highlander leader-election bracket: a
// deterministic single-elimination rock-paper-scissors tournament seeded by
// the chain tip, reproducible by every honest node from the same inputs.
package tournament

import (
	"sort"

	"github.com/tildenet/highlander"
)

// Seat is one bracket leaf: either a real participant or an auto-losing bye
// used to pad the bracket to a power of two.
type Seat struct {
	Identity highlander.PeerIdentity
	IsBye    bool
}

// Bracket is the single-elimination tree for one round: a seed, a
// power-of-two sequence of seats, and the derived level count.
type Bracket struct {
	Seed   [32]byte
	Seats  []Seat
	Levels int
}

// seatKey is the permutation key: sha256(seed || pubkey), spec §4.7.
func seatKey(seed [32]byte, id highlander.PeerIdentity) [32]byte {
	return highlander.SHA256(seed[:], id[:])
}

// nextPowerOfTwo returns the smallest power of two >= n, or 1 if n == 0.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// levels returns ceil(log2(n)) for n >= 1.
func levels(n int) int {
	l := 0
	for (1 << l) < n {
		l++
	}
	return l
}

// BuildBracket constructs the deterministic bracket for seed over
// participants (spec §4.7: "sort P lexicographically by pubkey, permute
// deterministically by sorting on sha256(round_seed || pubkey)"). Bye seats
// pad the result to a power of two. Returns nil if participants is empty.
func BuildBracket(seed [32]byte, participants []highlander.PeerIdentity) *Bracket {
	if len(participants) == 0 {
		return nil
	}

	sorted := highlander.SortIdentities(participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := seatKey(seed, sorted[i]), seatKey(seed, sorted[j])
		if ki != kj {
			for b := 0; b < 32; b++ {
				if ki[b] != kj[b] {
					return ki[b] < kj[b]
				}
			}
		}
		return sorted[i].Less(sorted[j])
	})

	size := nextPowerOfTwo(len(sorted))
	seats := make([]Seat, size)
	for i, id := range sorted {
		seats[i] = Seat{Identity: id}
	}
	for i := len(sorted); i < size; i++ {
		seats[i] = Seat{IsBye: true}
	}

	return &Bracket{Seed: seed, Seats: seats, Levels: levels(len(sorted))}
}

// Participants returns the real (non-bye) identities seated in the bracket,
// in bracket order.
func (b *Bracket) Participants() []highlander.PeerIdentity {
	out := make([]highlander.PeerIdentity, 0, len(b.Seats))
	for _, s := range b.Seats {
		if !s.IsBye {
			out = append(out, s.Identity)
		}
	}
	return out
}
