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

package tournament

import (
	"time"

	"github.com/tildenet/highlander"
)

type contender struct {
	id    highlander.PeerIdentity
	isBye bool
}

// Walk resolves every match in the bracket level by level, using throws[id]
// for the id's commitment at each level it's reached (spec §4.7: "each
// peer's throws[i] is used at tournament level i if reached"). Returns the
// winning identity and the full list of match results in bracket order,
// bottom level first. Transcript does not store this list (it stores the
// signed commitments); RunnersUp reads it to pick next_authors.
func Walk(b *Bracket, throws map[highlander.PeerIdentity]highlander.ThrowVector) (highlander.PeerIdentity, []MatchResult, error) {
	current := make([]contender, len(b.Seats))
	for i, s := range b.Seats {
		current[i] = contender{id: s.Identity, isBye: s.IsBye}
	}

	if len(current) == 1 {
		// |P| == 1: sole peer wins by default, spec §8 boundary behavior.
		return current[0].id, nil, nil
	}

	var results []MatchResult
	for level := 0; level < b.Levels; level++ {
		next := make([]contender, 0, len(current)/2)
		for i := 0; i < len(current); i += 2 {
			left, right := current[i], current[i+1]

			var leftThrow, rightThrow highlander.Throw
			if !left.isBye {
				vec, ok := throws[left.id]
				if !ok || len(vec) <= level {
					return highlander.PeerIdentity{}, nil, ErrIncompleteThrows
				}
				leftThrow = vec[level]
			}
			if !right.isBye {
				vec, ok := throws[right.id]
				if !ok || len(vec) <= level {
					return highlander.PeerIdentity{}, nil, ErrIncompleteThrows
				}
				rightThrow = vec[level]
			}

			result := resolveMatch(level, i/2, left.id, right.id, left.isBye, right.isBye, leftThrow, rightThrow)
			results = append(results, result)
			next = append(next, contender{id: result.Winner, isBye: left.isBye && right.isBye})
		}
		current = next
	}

	return current[0].id, results, nil
}

// IsLateWinner implements the late-throw rule (spec §4.7): if the computed
// winner is the last of P to have delivered its Throws message, the round
// must be rejected and restarted excluding that peer. A winner with no
// other participant in P is never late.
func IsLateWinner(participants []highlander.PeerIdentity, receivedAt map[highlander.PeerIdentity]time.Time, winner highlander.PeerIdentity) bool {
	winnerTime, ok := receivedAt[winner]
	if !ok {
		return false
	}
	others := 0
	for _, p := range participants {
		if p == winner {
			continue
		}
		others++
		t, ok := receivedAt[p]
		if !ok || t.After(winnerTime) {
			return false
		}
	}
	return others > 0
}

// RunnersUp returns up to depth eliminated identities (the "highest-climbing
// losers"), taken level by level from the final downward and
// most-recently-eliminated first, skipping bye slots — candidates for a
// block's next_authors (spec §4.7).
func RunnersUp(results []MatchResult, depth int) []highlander.PeerIdentity {
	if len(results) == 0 || depth <= 0 {
		return nil
	}
	topLevel := results[len(results)-1].Level
	out := make([]highlander.PeerIdentity, 0, depth)
	for level := topLevel; level >= 0 && len(out) < depth; level-- {
		for i := len(results) - 1; i >= 0; i-- {
			r := results[i]
			if r.Level != level {
				continue
			}
			loser := r.Left
			if r.Winner == r.Left {
				loser = r.Right
			}
			loserIsBye := (r.Winner == r.Left && r.RightBye) || (r.Winner == r.Right && r.LeftBye)
			if loserIsBye {
				continue
			}
			out = append(out, loser)
			if len(out) == depth {
				return out
			}
		}
	}
	return out
}
