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
	"encoding/binary"
	"time"

	"github.com/tildenet/highlander"
	"github.com/xtaci/gaio"
)

// ioLoop is the orchestrator's single I/O reactor: it drains gaio's
// completion queue and drives the stateReadSize/stateReadMessage frame
// state machine for every connection, generalizing the teacher's
// agentImpl.ioLoop (agent-tcp/agent.go) from one opaque BDLS message shape
// to Highlander's tagged frames. It advances peerConn.readState on every
// read completion and submits each follow-up read; a connection's first
// read is submitted by Connect or acceptLoop, and writes bypass the watcher
// (sendRaw writes to the net.Conn directly).
func (a *agentImpl) ioLoop() {
	for {
		results, err := a.watcher.WaitIO()
		if err != nil {
			return
		}
		for _, res := range results {
			pc, ok := res.Context.(*peerConn)
			if !ok {
				continue
			}
			if res.Operation == gaio.OpWrite {
				continue
			}
			if res.Error != nil {
				a.dropPeer(pc, highlander.ErrIONet)
				continue
			}

			switch pc.readState {
			case stateReadSize:
				if res.Size < highlander.LengthPrefixSize {
					a.dropPeer(pc, highlander.ErrProtocolBadFrame)
					continue
				}
				length := binary.LittleEndian.Uint32(res.Buffer)
				if length == 0 || length > highlander.MaxFrameSize+64 {
					a.dropPeer(pc, highlander.ErrProtocolBadFrame)
					continue
				}
				pc.readState = stateReadMessage
				buf := make([]byte, length)
				if err := a.watcher.ReadFull(pc, res.Conn, buf, time.Now().Add(defaultIODeadline)); err != nil {
					a.dropPeer(pc, highlander.ErrIONet)
				}

			case stateReadMessage:
				a.handleCiphertext(pc, res.Buffer)
				if err := a.submitNextRead(pc); err != nil {
					a.dropPeer(pc, highlander.ErrIONet)
				}
			}
		}
	}
}

// handleCiphertext processes one fully-reassembled ciphertext frame. On an
// inbound connection whose remote identity isn't known yet, it first tries
// to complete the handshake by trial-decryption (see tryIdentifyDialer).
func (a *agentImpl) handleCiphertext(pc *peerConn, ciphertext []byte) {
	if pc.session == nil {
		if !a.tryIdentifyDialer(pc, ciphertext) {
			a.dropPeer(pc, highlander.ErrCryptoDecrypt)
		}
		return
	}

	payload, err := highlander.OpenFrame(pc.session.AESKey, ciphertext)
	if err != nil {
		a.dropPeer(pc, err)
		return
	}
	pc.session.LastRecv = time.Now()
	if !pc.remote.IsZero() {
		a.registry.Touch(pc.remote)
	}
	if err := a.dispatch(pc, payload); err != nil {
		a.dropPeer(pc, err)
	}
}

// submitNextRead arms the watcher to read the next frame's length prefix
// off pc's connection, generalizing the teacher's stateReadSize branch of
// agentImpl.readLoop to Highlander's own frame layout.
func (a *agentImpl) submitNextRead(pc *peerConn) error {
	pc.readState = stateReadSize
	buf := make([]byte, highlander.LengthPrefixSize)
	return a.watcher.ReadFull(pc, pc.conn, buf, time.Now().Add(defaultIODeadline))
}

// sendRaw encrypts payload (if a session exists) and writes the framed
// result directly to pc's connection, grounded on the teacher's own
// write path (agent-tcp/tcp_peer.go sends with SetWriteDeadline + conn.Write
// rather than through the gaio watcher, which this codebase only uses for
// reads).
func (a *agentImpl) sendRaw(pc *peerConn, payload []byte) {
	if pc.session == nil {
		return
	}
	frame, err := highlander.SealFrame(pc.session.AESKey, payload)
	if err != nil {
		a.log.Printf("seal frame: %v", err)
		return
	}
	pc.session.LastSent = time.Now()
	pc.conn.SetWriteDeadline(time.Now().Add(defaultIODeadline))
	if _, err := pc.conn.Write(frame); err != nil {
		// The read side (ioLoop) will observe the same broken connection
		// and call dropPeer; avoid doing so here to keep sendRaw callable
		// while a.mu is already held (e.g. Close's farewell broadcast).
		a.log.Printf("write to peer failed: %v", err)
	}
}

// identityForAddr looks up a known peer's identity by its dialable
// address — populated either from Config's peer-book (loaded into the
// registry before Connect is called) or from gossiped Introduce messages
// (spec §4.6). Dialing an address with no known identity is refused: spec
// §4.2 requires Hello to already ride the ECDH-derived key, which needs
// the remote long-term public key in hand before the first frame is sent.
func (a *agentImpl) identityForAddr(addr string) (highlander.PeerIdentity, bool) {
	for _, info := range a.registry.AllKnown() {
		if info.Addr == addr {
			return info.Identity, true
		}
	}
	return highlander.PeerIdentity{}, false
}

// sendHello derives the ECDH session key for an outbound connection and
// sends this node's Hello under it (spec §4.3).
func (a *agentImpl) sendHello(pc *peerConn) error {
	id, ok := a.identityForAddr(pc.addr)
	if !ok {
		return highlander.ErrProtocolUnexpectedState
	}
	remotePub, err := id.PublicKey()
	if err != nil {
		return err
	}

	key := highlander.ECDH(a.cfg.PrivateKey, remotePub)
	now := time.Now()
	pc.session = &highlander.Session{RemotePubkey: id, AESKey: key, LastRecv: now, LastSent: now}
	pc.remote = id

	hello := &highlander.Hello{Pubkey: a.identity, ListenAddr: a.cfg.Addr}
	a.sendRaw(pc, highlander.EncodeHello(hello))
	return nil
}

// tryIdentifyDialer handles the first ciphertext on an inbound connection,
// whose sender's identity isn't known yet. It trial-decrypts against every
// identity this node already knows (its founding peer set plus anything
// learned via gossip), bounded by that set's size — a pragmatic resolution
// of spec §4.3's chicken-and-egg requirement that Hello already be
// encrypted under a key both sides can derive only once the remote's
// long-term key is known (see DESIGN.md).
func (a *agentImpl) tryIdentifyDialer(pc *peerConn, ciphertext []byte) bool {
	for _, info := range a.registry.AllKnown() {
		pub, err := info.Identity.PublicKey()
		if err != nil {
			continue
		}
		key := highlander.ECDH(a.cfg.PrivateKey, pub)
		payload, err := highlander.OpenFrame(key, ciphertext)
		if err != nil {
			continue
		}
		if len(payload) == 0 || highlander.MessageTag(payload[0]) != highlander.TagHello {
			continue
		}
		hello, err := highlander.DecodeHello(payload[1:])
		if err != nil || hello.Pubkey != info.Identity {
			continue
		}

		now := time.Now()
		pc.session = &highlander.Session{RemotePubkey: info.Identity, AESKey: key, LastRecv: now, LastSent: now}
		pc.remote = info.Identity
		pc.addr = hello.ListenAddr
		a.finalizeHandshake(pc, hello)
		return true
	}
	return false
}

// finalizeHandshake completes the mutual Hello exchange: records the
// connection under its remote identity, marks the peer live in the
// registry, replies with our own Hello if this side hasn't sent one yet
// (the inbound path), and resolves bootstrapping.
func (a *agentImpl) finalizeHandshake(pc *peerConn, hello *highlander.Hello) {
	if !pc.handshakeDone && !pc.outbound {
		reply := &highlander.Hello{Pubkey: a.identity, ListenAddr: a.cfg.Addr}
		a.sendRaw(pc, highlander.EncodeHello(reply))
	}
	pc.handshakeDone = true

	a.mu.Lock()
	a.byPeer[pc.remote] = pc
	wasBootstrapping := a.state == stateBootstrapping
	a.mu.Unlock()

	a.registry.Learn(pc.remote, hello.ListenAddr)
	a.registry.MarkConnected(pc.remote, hello.ListenAddr)

	a.sendIntroduce(pc)

	if wasBootstrapping {
		a.bootstrapFrom(pc)
	}
}

// sendIntroduce announces this node's full known-peer set to a freshly
// connected peer (spec §4.6).
func (a *agentImpl) sendIntroduce(pc *peerConn) {
	known := a.registry.AllKnown()
	peers := make([]highlander.PeerAddr, 0, len(known)+1)
	peers = append(peers, highlander.PeerAddr{Identity: a.identity, Addr: a.cfg.Addr})
	for _, info := range known {
		if info.Addr == "" {
			continue
		}
		peers = append(peers, highlander.PeerAddr{Identity: info.Identity, Addr: info.Addr})
	}
	a.sendRaw(pc, highlander.EncodeIntroduce(&highlander.Introduce{Peers: peers}))
}

// bootstrapFrom resolves the chain tip from the first peer this node
// connects to (SPEC_FULL.md §3 "Chain sync on join") and transitions
// Bootstrapping -> Idle (spec §4.8).
func (a *agentImpl) bootstrapFrom(pc *peerConn) {
	height, hasTip := a.blockStore.Height()
	from := uint64(0)
	if hasTip {
		from = height + 1
	}
	a.sendRaw(pc, highlander.EncodeRequestBlocks(&highlander.RequestBlocksMsg{FromHeight: from}))

	a.mu.Lock()
	a.state = stateIdle
	a.mu.Unlock()
	a.startRound()
}

// dispatch decodes a decrypted payload's tag and routes it (spec §4.2).
func (a *agentImpl) dispatch(pc *peerConn, payload []byte) error {
	if len(payload) == 0 {
		return highlander.ErrProtocolBadFrame
	}
	tag := highlander.MessageTag(payload[0])
	body := payload[1:]

	switch tag {
	case highlander.TagHello:
		hello, err := highlander.DecodeHello(body)
		if err != nil {
			return err
		}
		if pc.remote.IsZero() {
			pc.remote = hello.Pubkey
		} else if pc.remote != hello.Pubkey {
			return highlander.ErrProtocolUnexpectedState
		}
		a.finalizeHandshake(pc, hello)
		return nil

	case highlander.TagIntroduce:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodeIntroduce(body)
		if err != nil {
			return err
		}
		a.handleIntroduce(msg)
		return nil

	case highlander.TagKeepAlive:
		if pc.session != nil {
			pc.session.LastRecv = time.Now()
		}
		return nil

	case highlander.TagPendingData:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodePendingData(body)
		if err != nil {
			return err
		}
		a.handlePendingData(pc, msg)
		return nil

	case highlander.TagThrows:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodeThrows(body)
		if err != nil {
			return err
		}
		a.handleThrows(pc, msg)
		return nil

	case highlander.TagBlock:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodeBlockMsg(body)
		if err != nil {
			return err
		}
		a.handleBlockMsg(pc, msg)
		return nil

	case highlander.TagRequestBlocks:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodeRequestBlocks(body)
		if err != nil {
			return err
		}
		a.handleRequestBlocks(pc, msg)
		return nil

	case highlander.TagBlocks:
		if !pc.handshakeDone {
			return highlander.ErrProtocolUnexpectedState
		}
		msg, err := highlander.DecodeBlocks(body)
		if err != nil {
			return err
		}
		a.handleBlocksMsg(msg)
		return nil

	case highlander.TagBye:
		a.dropPeer(pc, nil)
		return nil

	default:
		return highlander.ErrProtocolBadTag
	}
}

func (a *agentImpl) handleIntroduce(msg *highlander.Introduce) {
	for _, p := range msg.Peers {
		if p.Identity == a.identity {
			continue
		}
		learned := a.registry.Learn(p.Identity, p.Addr)
		if learned {
			candidates := a.registry.DialCandidates(a.cfg.RelationshipCount, a.cfg.RelationshipRetry)
			for _, c := range candidates {
				if c.Identity == p.Identity {
					a.registry.IncrementDialAttempts(c.Identity)
					go func(addr string) { _ = a.Connect(addr) }(p.Addr)
				}
			}
		}
	}
}

func (a *agentImpl) handlePendingData(pc *peerConn, msg *highlander.PendingDataMsg) {
	if !msg.Datum.Verify() {
		return
	}
	if a.seen.SeenDurable(msg.Datum.Key()) {
		return
	}

	a.mu.Lock()
	if a.round != nil {
		a.round.AddDatum(msg.Datum)
	}
	peers := a.connectedLocked()
	a.mu.Unlock()

	frame := highlander.EncodePendingData(msg)
	a.relay(pc, peers, frame)
}

func (a *agentImpl) handleRequestBlocks(pc *peerConn, msg *highlander.RequestBlocksMsg) {
	var blocks []*highlander.Block
	_ = a.blockStore.IterFrom(msg.FromHeight, func(b *highlander.Block) bool {
		blocks = append(blocks, b)
		return len(blocks) < 256
	})
	a.sendRaw(pc, highlander.EncodeBlocks(&highlander.BlocksMsg{Blocks: blocks}))
}

func (a *agentImpl) handleBlocksMsg(msg *highlander.BlocksMsg) {
	for _, b := range msg.Blocks {
		a.acceptBlock(b, nil)
	}
}

// relay forwards frame to every connected peer except the one it arrived
// from, implementing flood gossip with the seen-set already having been
// checked by the caller (spec §4.6).
func (a *agentImpl) relay(from *peerConn, peers []*peerConn, frame []byte) {
	for _, pc := range peers {
		if pc == from {
			continue
		}
		a.sendRaw(pc, frame)
	}
}
