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
	"crypto/ecdsa"
	"time"
)

// DefaultNextCandidates is used when Config.NextCandidates is left zero.
const DefaultNextCandidates = 1

// OnBlockCreation is the capability the winner calls before sealing a
// block: given the gathered pending data, it returns the data to actually
// include, or an error to abort the round (spec §6). It is modeled as a
// plain function value, per spec §9's "capability, not ambient dynamic
// dispatch" design note.
type OnBlockCreation func(map[string]PendingDatum) (map[string]PendingDatum, error)

// Config configures a Highlander node (spec §6).
type Config struct {
	// Addr is the listen socket address, e.g. ":4680".
	Addr string
	// Folder is the block store path.
	Folder string
	// PrivateKey identifies this node and signs everything it authors.
	PrivateKey *ecdsa.PrivateKey

	// KeepAlive is the idle ping interval for connections.
	KeepAlive time.Duration
	// DataGatherTime is the round's gathering window.
	DataGatherTime time.Duration
	// Thin, if true, keeps only the last ThinRetention blocks of other
	// peers' authorship on disk (own blocks are always retained).
	Thin bool
	// ThinRetention is how many non-own blocks a thin node retains.
	ThinRetention uint64

	// RelationshipTime is the dial retry interval, and also the timeout
	// after which an electing round with no block is considered stalled.
	RelationshipTime time.Duration
	// RelationshipCount is the target number of live peer connections.
	RelationshipCount int
	// RelationshipRetry is the number of dial attempts before giving up on
	// a known peer.
	RelationshipRetry int

	// NextCandidates is the length of next_authors in authored blocks.
	NextCandidates int

	// ForceRestart wipes the local chain on startup.
	ForceRestart bool

	// Proxy, if set, is a Socks5 endpoint all outbound dials go through.
	Proxy string

	// OnBlockCreation is called by the round's winner before sealing a
	// block. May be nil, in which case gathered data is included as-is.
	OnBlockCreation OnBlockCreation
	// CallbackDeadline bounds OnBlockCreation; exceeding it aborts the
	// round (spec §5).
	CallbackDeadline time.Duration

	// FoundingPeers seeds the peer registry before any connection is made:
	// each entry's Addr is what makes that entry's identity resolvable by
	// Connect (spec §4.2's Hello needs the remote pubkey before the first
	// frame goes out), and the set's lexicographically smallest Identity
	// is the genesis author (spec §3, chain invariant 4).
	FoundingPeers []FoundingPeer
}

// FoundingPeer is one entry of a node's pre-shared bootstrap peer-book: an
// identity paired with the address it is expected to be dialable at.
type FoundingPeer struct {
	Identity PeerIdentity
	Addr     string
}

// FoundingIdentities extracts the bare identities from a founding peer set,
// for callers that only need the ordering key (e.g. SmallestIdentity).
func FoundingIdentities(peers []FoundingPeer) []PeerIdentity {
	out := make([]PeerIdentity, len(peers))
	for i, p := range peers {
		out[i] = p.Identity
	}
	return out
}

// Validate checks the integrity of a Config, mirroring the teacher's
// VerifyConfig (consensus/config.go) extended with Highlander's own option
// set. All failures are ErrConfig* (spec §7: fatal at startup).
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrConfigAddr
	}
	if c.Folder == "" {
		return ErrConfigFolder
	}
	if c.PrivateKey == nil {
		return ErrConfigPrivateKey
	}
	if c.KeepAlive <= 0 {
		return ErrConfigKeepAlive
	}
	if c.DataGatherTime <= 0 {
		return ErrConfigGatherTime
	}
	if c.NextCandidates < 0 {
		return ErrConfigNextCandidate
	}
	return nil
}

// ApplyDefaults fills in zero-valued optional fields with spec-sensible
// defaults.
func (c *Config) ApplyDefaults() {
	if c.NextCandidates == 0 {
		c.NextCandidates = DefaultNextCandidates
	}
	if c.RelationshipCount == 0 {
		c.RelationshipCount = 8
	}
	if c.RelationshipRetry == 0 {
		c.RelationshipRetry = 3
	}
	if c.RelationshipTime == 0 {
		c.RelationshipTime = 5 * time.Second
	}
	if c.ThinRetention == 0 {
		c.ThinRetention = 256
	}
	if c.CallbackDeadline == 0 {
		c.CallbackDeadline = c.DataGatherTime
	}
}
