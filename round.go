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

import "time"

// Round is the ephemeral per-round state tracked between one accepted
// block and the next (spec §3).
type Round struct {
	Seed          [32]byte
	Participants  map[PeerIdentity]struct{}
	MyThrows      ThrowVector
	ReceivedAt    map[PeerIdentity]time.Time
	ReceivedThrows map[PeerIdentity]ThrowVector
	GatheredData  map[string]PendingDatum
	Deadline      time.Time
}

// NewRound starts a fresh round over participants, seeded by the hash of
// the block the round follows.
func NewRound(seed [32]byte, participants []PeerIdentity, deadline time.Time) *Round {
	r := &Round{
		Seed:           seed,
		Participants:   make(map[PeerIdentity]struct{}, len(participants)),
		ReceivedAt:     make(map[PeerIdentity]time.Time),
		ReceivedThrows: make(map[PeerIdentity]ThrowVector),
		GatheredData:   make(map[string]PendingDatum),
		Deadline:       deadline,
	}
	for _, p := range participants {
		r.Participants[p] = struct{}{}
	}
	return r
}

// ParticipantList returns the round's participant set as a slice, in no
// particular order (callers needing determinism must sort it themselves,
// as the tournament package's bracket construction does).
func (r *Round) ParticipantList() []PeerIdentity {
	out := make([]PeerIdentity, 0, len(r.Participants))
	for p := range r.Participants {
		out = append(out, p)
	}
	return out
}

// AddThrows records a peer's committed throw vector along with the time it
// was received, used by the late-throw rule (spec §4.7).
func (r *Round) AddThrows(id PeerIdentity, throws ThrowVector, receivedAt time.Time) {
	if _, ok := r.Participants[id]; !ok {
		return
	}
	r.ReceivedThrows[id] = throws
	r.ReceivedAt[id] = receivedAt
}

// AddDatum stages a pending datum for this round, deduplicating by
// signature (spec §3).
func (r *Round) AddDatum(d PendingDatum) {
	r.GatheredData[d.Key()] = d
}

// AllThrowsReceived reports whether every participant's throws are in.
func (r *Round) AllThrowsReceived() bool {
	return len(r.ReceivedThrows) >= len(r.Participants)
}

// WithoutParticipant returns a copy of the round's participant set minus
// excluded, used when the late-throw rule or a stalled round restarts a
// round (spec §4.7, §4.8).
func (r *Round) WithoutParticipant(excluded PeerIdentity) []PeerIdentity {
	out := make([]PeerIdentity, 0, len(r.Participants))
	for p := range r.Participants {
		if p != excluded {
			out = append(out, p)
		}
	}
	return out
}
