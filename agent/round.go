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

import (
	"time"

	"github.com/tildenet/highlander"
	"github.com/tildenet/highlander/tournament"
)

// startRound begins the very first round over the currently connected peer
// set plus this node (spec §4.8: Idle -> Gathering). A lone node with no
// peers still runs the bracket of one (tournament.Walk's |P| == 1 case) and
// authors immediately once its own deadline passes.
func (a *agentImpl) startRound() {
	a.mu.Lock()
	participants := []highlander.PeerIdentity{a.identity}
	for id := range a.byPeer {
		participants = append(participants, id)
	}
	a.round = nil
	a.mu.Unlock()

	a.restartRound(participants)
}

// bracketLevels returns ceil(log2(n)) for n >= 1, matching
// tournament.BuildBracket's own level count so a throw vector is always
// long enough for the bracket it will face.
func bracketLevels(n int) int {
	l := 0
	for (1 << l) < n {
		l++
	}
	return l
}

// roundSeed derives the next round's seed from the current chain tip, or
// the zero hash before genesis (spec §3: "round_seed = tip block_hash, or
// the zero hash before genesis").
func (a *agentImpl) roundSeed() [32]byte {
	tip, hasTip := a.blockStore.Tip()
	if !hasTip {
		return [32]byte{}
	}
	return tip
}

// handleThrows records an incoming ThrowsMsg, relays it (deduplicated via
// the seen-set), and checks whether the round is ready to elect
// (spec §4.7, §4.2).
func (a *agentImpl) handleThrows(pc *peerConn, msg *highlander.ThrowsMsg) {
	if !msg.Verify() {
		return
	}

	a.mu.Lock()
	if a.round == nil || msg.RoundSeed != a.round.Seed {
		a.mu.Unlock()
		return
	}
	a.round.AddThrows(msg.Author, msg.Throws, time.Now())
	ready := a.round.AllThrowsReceived()
	peers := a.connectedLocked()
	a.mu.Unlock()

	if !a.seen.SeenThrows(string(msg.Signature)) {
		a.relay(pc, peers, highlander.EncodeThrows(msg))
	}

	if ready {
		a.electWinner()
	}
}

// onGatherTimeout fires when a round's DataGatherTime elapses and, if the
// round is still Gathering, attempts the election (spec §4.8: Gathering ->
// Electing on timeout). If a seated participant's throws are still missing,
// electWinner returns the round to Gathering and re-arms this timeout.
func (a *agentImpl) onGatherTimeout() {
	select {
	case <-a.die:
		return
	default:
	}

	a.mu.Lock()
	active := a.round != nil && a.state == stateGathering
	a.mu.Unlock()
	if !active {
		return
	}
	a.electWinner()
}

// electWinner walks the bracket over whichever throws are in hand,
// enforces the late-throw rule, and either assembles a block (this node
// won) or waits for the winner to broadcast one, restarting on staleness
// (spec §4.7, §4.8).
func (a *agentImpl) electWinner() {
	a.mu.Lock()
	if a.round == nil || a.state != stateGathering {
		a.mu.Unlock()
		return
	}
	a.state = stateElecting
	round := a.round
	a.mu.Unlock()

	participants := round.ParticipantList()
	bracket := tournament.BuildBracket(round.Seed, participants)
	if bracket == nil {
		a.restartRound([]highlander.PeerIdentity{a.identity})
		return
	}

	winner, results, err := tournament.Walk(bracket, round.ReceivedThrows)
	if err != nil {
		// A seated participant (e.g. a nominated next_author that hasn't
		// connected yet) still hasn't thrown. Fall back to Gathering and
		// retry on the same cadence rather than stalling forever with no
		// timer armed; a genuinely absent participant is only ever cleared
		// by an operator excluding it from FoundingPeers/next_authors.
		a.mu.Lock()
		a.state = stateGathering
		a.mu.Unlock()
		a.timedSched.Put(a.onGatherTimeout, time.Now().Add(a.cfg.DataGatherTime))
		return
	}

	// Genesis is appointed, not elected: spec §3 chain invariant 4 makes
	// the lexicographically smallest founding pubkey authoritative for
	// the block with prev_hash == 0, and §4.7 point 3 demotes transcript
	// replay to a secondary sanity check in that case. The tournament
	// still runs (its runners-up seed next_authors) but its winner is
	// overridden so every honest node converges on the same genesis
	// author regardless of how the bracket of throws actually fell.
	if round.Seed == ([32]byte{}) && len(a.cfg.FoundingPeers) > 0 {
		winner = highlander.SmallestIdentity(highlander.FoundingIdentities(a.cfg.FoundingPeers))
	} else if tournament.IsLateWinner(participants, round.ReceivedAt, winner) {
		a.restartRound(round.WithoutParticipant(winner))
		return
	}

	a.mu.Lock()
	a.lastComputedWinner = winner
	a.state = stateProposing
	a.mu.Unlock()

	if winner == a.identity {
		a.assembleAndBroadcastBlock(round, bracket, results, winner)
		return
	}

	// Someone else won: wait for their Block announcement, with a
	// RelationshipTime fallback that restarts the round if it never
	// arrives (spec §4.8: "if no block arrives within relationship_time
	// of electing, treat the round as stalled").
	a.timedSched.Put(func() { a.onRoundStalled(round.Seed) }, time.Now().Add(a.cfg.RelationshipTime))
}

// onRoundStalled restarts a round that elected a winner whose block never
// showed up, excluding that silent winner from the new participant set
// (spec §4.8, §7: surfaces ErrRoundStalled).
func (a *agentImpl) onRoundStalled(seed [32]byte) {
	select {
	case <-a.die:
		return
	default:
	}

	a.mu.Lock()
	stale := a.round != nil && a.round.Seed == seed && a.state == stateProposing
	round := a.round
	winner := a.lastComputedWinner
	a.mu.Unlock()
	if !stale {
		return
	}

	a.log.Printf("%v: round %x", highlander.ErrRoundStalled, seed[:8])
	a.restartRound(round.WithoutParticipant(winner))
}

// restartRound discards the current round and opens a fresh one over a
// possibly-narrowed participant set (spec §4.7's late-throw remedy,
// §4.8's stall remedy). The seed is unchanged: no block was committed.
func (a *agentImpl) restartRound(participants []highlander.PeerIdentity) {
	select {
	case <-a.die:
		return
	default:
	}

	seed := a.roundSeed()
	deadline := time.Now().Add(a.cfg.DataGatherTime)

	a.mu.Lock()
	prevData := map[string]highlander.PendingDatum{}
	if a.round != nil {
		for k, v := range a.round.GatheredData {
			prevData[k] = v
		}
	}
	if len(participants) == 0 {
		participants = []highlander.PeerIdentity{a.identity}
	}
	a.round = highlander.NewRound(seed, participants, deadline)
	for k, v := range prevData {
		a.round.GatheredData[k] = v
	}
	a.state = stateGathering
	peers := a.connectedLocked()
	a.mu.Unlock()

	a.seen.AdvanceRound()

	levels := bracketLevels(len(participants))
	myThrows := highlander.DeriveThrowVector(a.cfg.PrivateKey, seed, levels)
	a.mu.Lock()
	a.round.MyThrows = myThrows
	a.round.AddThrows(a.identity, myThrows, time.Now())
	a.mu.Unlock()

	msg, err := highlander.SignThrows(a.cfg.PrivateKey, seed, myThrows)
	if err == nil {
		frame := highlander.EncodeThrows(msg)
		a.seen.SeenThrows(string(msg.Signature))
		for _, pc := range peers {
			a.sendRaw(pc, frame)
		}
	}

	a.timedSched.Put(a.onGatherTimeout, deadline)
}
