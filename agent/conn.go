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
	"net"
	"time"

	"github.com/decred/go-socks/socks"
	"github.com/tildenet/highlander"
)

// readState tracks where a connection is in the frame-reassembly state
// machine, generalized from the teacher's stateReadSize/stateReadMessage
// pair (agent-tcp/tcp_peer.go's readLoop) from one opaque BDLS message to
// Highlander's tagged message set.
type readState int

const (
	stateReadSize readState = iota
	stateReadMessage
)

// peerConn is the per-connection state the orchestrator's single I/O
// reactor multiplexes over (spec §4.5). Unlike the teacher's TCPPeer, it
// carries no goroutines of its own: all reads and writes are submitted
// through the shared gaio.Watcher and completions are delivered back to
// the orchestrator's single dispatch loop, keeping the orchestrator the
// sole mutator of round and chain state (spec §5, §9).
type peerConn struct {
	conn net.Conn

	// remote is the peer's announced identity, populated once Hello is
	// received and the session key derived.
	remote highlander.PeerIdentity
	addr   string

	session *highlander.Session

	readState readState
	outbound  bool // true if we dialed; false if they connected to us

	handshakeDone bool

	lastKeepAliveSent time.Time
}

// newPeerConn wraps a freshly connected socket, awaiting Hello.
func newPeerConn(conn net.Conn, outbound bool) *peerConn {
	return &peerConn{
		conn:      conn,
		readState: stateReadSize,
		outbound:  outbound,
	}
}

// dial opens a TCP connection to addr, transparently through a Socks5
// proxy when proxyAddr is set (spec §4.5, Config.Proxy). Grounded on
// decred/go-socks's Proxy.Dial shape (EXCCoin-exccd's go.mod pulls the
// same package for its own optional proxy dial path).
func dial(addr, proxyAddr string, timeout time.Duration) (net.Conn, error) {
	if proxyAddr == "" {
		return net.DialTimeout("tcp", addr, timeout)
	}
	proxy := &socks.Proxy{Addr: proxyAddr}
	return proxy.Dial("tcp", addr)
}
