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

// Package registry tracks the peers a Highlander node knows about (spec
// §4.4): the full set ever learned, the subset with a live session, and a
// relationship-strength score the orchestrator uses to decide who to
// re-dial. Generalized from the teacher's flat agentImpl.peers /
// TCPAgent.peers slice (agent-tcp/agent.go, agent-tcp/tcp_peer.go) into the
// all-known-versus-connections split spec §4.4 requires.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/tildenet/highlander"
)

// Info is everything the registry knows about one peer.
type Info struct {
	Identity            highlander.PeerIdentity
	Addr                string
	Connected           bool
	LastSeen            time.Time
	RelationshipStrength int
	DialAttempts        int
}

// Registry is the in-memory map of known peers (spec §4.4). Every method
// takes the registry's own mutex, so it is safe to share across the
// agent's accept, I/O, dial and round goroutines.
type Registry struct {
	mu    sync.Mutex
	peers map[highlander.PeerIdentity]*Info
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{peers: make(map[highlander.PeerIdentity]*Info)}
}

// Learn records a peer's address if it isn't already known, or refreshes
// the address of one that is. Returns true if this is a newly learned
// peer (spec §4.6: "for each newly learned peer, optionally dial").
func (r *Registry) Learn(id highlander.PeerIdentity, addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.peers[id]; ok {
		if addr != "" {
			info.Addr = addr
		}
		return false
	}
	r.peers[id] = &Info{Identity: id, Addr: addr, LastSeen: time.Now()}
	return true
}

// MarkConnected records that id now holds a live session.
func (r *Registry) MarkConnected(id highlander.PeerIdentity, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.peers[id]
	if !ok {
		info = &Info{Identity: id}
		r.peers[id] = info
	}
	info.Connected = true
	info.LastSeen = time.Now()
	if addr != "" {
		info.Addr = addr
	}
}

// MarkDisconnected clears a peer's live-session flag and halves its
// relationship strength, the decay rule recorded in DESIGN.md for spec
// §4.4's otherwise-unspecified update rule.
func (r *Registry) MarkDisconnected(id highlander.PeerIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.peers[id]
	if !ok {
		return
	}
	info.Connected = false
	info.RelationshipStrength /= 2
}

// Touch increments a peer's relationship strength on every successfully
// processed frame (DESIGN.md's decay/increment rule) and refreshes
// LastSeen.
func (r *Registry) Touch(id highlander.PeerIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.peers[id]
	if !ok {
		return
	}
	info.RelationshipStrength++
	info.LastSeen = time.Now()
}

// IncrementDialAttempts records a dial attempt against a known peer, used
// against Config.RelationshipRetry to decide when to give up (spec §6).
func (r *Registry) IncrementDialAttempts(id highlander.PeerIdentity) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.peers[id]
	if !ok {
		return 0
	}
	info.DialAttempts++
	return info.DialAttempts
}

// Get returns a copy of a peer's info, or false if unknown.
func (r *Registry) Get(id highlander.PeerIdentity) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.peers[id]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// AllKnown returns every peer the registry has ever learned of, including
// those currently offline (spec §4.4).
func (r *Registry) AllKnown() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.peers))
	for _, info := range r.peers {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })
	return out
}

// Connections returns the subset of known peers currently holding a live
// session (spec §4.4).
func (r *Registry) Connections() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Info
	for _, info := range r.peers {
		if info.Connected {
			out = append(out, *info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })
	return out
}

// LiveCount reports the number of currently connected peers.
func (r *Registry) LiveCount() int {
	return len(r.Connections())
}

// DialCandidates returns known, currently-disconnected peers worth
// dialing to reach target live connections, highest relationship strength
// first, excluding any peer whose DialAttempts already meets retryLimit
// (spec §4.4, §6 "relationship_retry").
func (r *Registry) DialCandidates(target, retryLimit int) []Info {
	live := r.LiveCount()
	if live >= target {
		return nil
	}

	r.mu.Lock()
	var candidates []Info
	for _, info := range r.peers {
		if info.Connected || info.Addr == "" {
			continue
		}
		if retryLimit > 0 && info.DialAttempts >= retryLimit {
			continue
		}
		candidates = append(candidates, *info)
	}
	r.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RelationshipStrength != candidates[j].RelationshipStrength {
			return candidates[i].RelationshipStrength > candidates[j].RelationshipStrength
		}
		return candidates[i].Identity.Less(candidates[j].Identity)
	})

	need := target - live
	if need < len(candidates) {
		candidates = candidates[:need]
	}
	return candidates
}
