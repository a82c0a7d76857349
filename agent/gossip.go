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

package agent

// seenSet tracks content hashes of gossiped messages to prevent
// re-forwarding (spec §4.6, §8 testable property 6: "gossip termination").
// Entries expire either at round boundaries (throws) or after N blocks of
// height advance (data/blocks); the caller picks which by calling
// AdvanceRound or AdvanceHeight at the right point in the round lifecycle.
type seenSet struct {
	byRound  map[string]uint64 // key -> round number first seen
	byHeight map[string]uint64 // key -> chain height first seen
	round    uint64
	height   uint64
}

func newSeenSet() *seenSet {
	return &seenSet{
		byRound:  make(map[string]uint64),
		byHeight: make(map[string]uint64),
	}
}

// SeenThrows reports whether key (a ThrowsMsg signature) was already
// recorded for the current round, recording it if not.
func (s *seenSet) SeenThrows(key string) bool {
	if _, ok := s.byRound[key]; ok {
		return true
	}
	s.byRound[key] = s.round
	return false
}

// SeenDurable reports whether key (a block hash or datum signature) was
// already recorded, recording it if not.
func (s *seenSet) SeenDurable(key string) bool {
	if _, ok := s.byHeight[key]; ok {
		return true
	}
	s.byHeight[key] = s.height
	return false
}

// AdvanceRound clears throw-keyed entries at a round boundary.
func (s *seenSet) AdvanceRound() {
	s.round++
	s.byRound = make(map[string]uint64)
}

// AdvanceHeight bumps the height counter and expires durable entries older
// than retainBlocks heights.
func (s *seenSet) AdvanceHeight(retainBlocks uint64) {
	s.height++
	if retainBlocks == 0 {
		return
	}
	if s.height <= retainBlocks {
		return
	}
	cutoff := s.height - retainBlocks
	for k, h := range s.byHeight {
		if h < cutoff {
			delete(s.byHeight, k)
		}
	}
}
