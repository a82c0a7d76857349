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

import "errors"

// Crypto-layer errors are fatal to the affected session.
var (
	ErrCryptoSign    = errors.New("highlander: signing failed")
	ErrCryptoVerify  = errors.New("highlander: signature verification failed")
	ErrCryptoDecrypt = errors.New("highlander: decryption failed")
	ErrCryptoKeyGen  = errors.New("highlander: key generation failed")
)

// Protocol-layer errors are session fatal; the peer is disconnected and recorded.
var (
	ErrProtocolBadFrame        = errors.New("highlander: malformed frame")
	ErrProtocolBadTag          = errors.New("highlander: unknown message tag")
	ErrFrameTooLarge           = errors.New("highlander: frame exceeds maximum size")
	ErrProtocolUnexpectedState = errors.New("highlander: message received in unexpected session state")
)

// Chain-layer errors cause the offending block to be dropped without
// interrupting the round; gossip is not forwarded.
var (
	ErrChainBadPrev       = errors.New("highlander: block does not extend known tip")
	ErrChainBadHeight     = errors.New("highlander: block height does not follow its parent")
	ErrChainBadAuthor     = errors.New("highlander: author not authorized for this height")
	ErrChainBadTranscript = errors.New("highlander: game transcript does not reconstruct to the claimed author")
	ErrChainBadSig        = errors.New("highlander: invalid signature in block or datum")
)

// Round-layer errors cause the round to be discarded and restarted with a
// refreshed participant set.
var (
	ErrRoundStalled    = errors.New("highlander: round stalled waiting for a block")
	ErrRoundLateWinner = errors.New("highlander: computed winner delivered throws after the deadline")
	ErrRoundEmpty      = errors.New("highlander: round has no participants")
)

// I/O errors. Failed dials are retried at a fixed interval (the agent's
// dial loop every RelationshipTime), with no backoff. A disk error from
// appending a block is logged by the agent and that block is dropped; it is
// not treated as fatal and is not returned to the embedder.
var (
	ErrIODisk = errors.New("highlander: disk I/O error")
	ErrIONet  = errors.New("highlander: network I/O error")
)

// Config errors are fatal at startup.
var (
	ErrConfigAddr          = errors.New("highlander: config: listen address required")
	ErrConfigFolder        = errors.New("highlander: config: block store folder required")
	ErrConfigPrivateKey    = errors.New("highlander: config: private key required")
	ErrConfigKeepAlive     = errors.New("highlander: config: keep_alive must be positive")
	ErrConfigGatherTime    = errors.New("highlander: config: data_gather_time must be positive")
	ErrConfigNextCandidate = errors.New("highlander: config: next_candidates must not be negative")

	// ErrListenerNotSpecified mirrors the teacher's own sentinel for a nil listener.
	ErrListenerNotSpecified = errors.New("highlander: listener not specified")
	// ErrPeerExists names a duplicate registry identity. Nothing returns it:
	// Registry.Learn reports an already-known peer by returning false.
	ErrPeerExists = errors.New("highlander: peer already known")
	// ErrPeerIdle is returned when a session is closed for missing two keep-alive windows.
	ErrPeerIdle = errors.New("highlander: peer idle timeout")
	// ErrClosed is returned by API calls made after the peer has shut down.
	ErrClosed = errors.New("highlander: peer closed")
)
