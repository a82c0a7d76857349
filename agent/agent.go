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

// Package agent owns the peer orchestrator: the connection loop (C5),
// gossip/introduction (C6) and the round lifecycle state machine (C8) that
// wires the tournament, store and registry packages together and exposes
// Highlander's public API (spec §6). Structurally grounded on the
// teacher's Agent/agentImpl wrapper-with-finalizer
// (agent-tcp/agent.go:NewAgent) and its single consensusMu-guarded
// goroutine set (acceptor, readLoop, update), generalized from one
// gaio-driven opaque consensus message to Highlander's tagged wire
// protocol and multi-state round machine.
package agent

import (
	"log"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/tildenet/highlander"
	"github.com/tildenet/highlander/internal/timer"
	"github.com/tildenet/highlander/registry"
	"github.com/tildenet/highlander/store"
	"github.com/xtaci/gaio"
)

const (
	defaultIODeadline = 60 * time.Second
	blockFeedBuffer   = 32
)

// roundState is the orchestrator's round lifecycle state (spec §4.8).
type roundState int

const (
	stateBootstrapping roundState = iota
	stateIdle
	stateGathering
	stateElecting
	stateProposing
	stateCommitted
)

// Peer is a running Highlander node: the public handle returned by New.
// Mirrors the teacher's Agent{*agentImpl} wrapper-with-finalizer shape so
// that an embedder holding a Peer cannot reach into orchestrator internals.
type Peer struct {
	*agentImpl
}

type agentImpl struct {
	cfg      highlander.Config
	identity highlander.PeerIdentity

	listener net.Listener
	watcher  *gaio.Watcher

	registry   *registry.Registry
	blockStore *store.Store
	timedSched *timer.TimedSched
	seen       *seenSet

	log *log.Logger

	// mu guards everything below: round/state/conns, mirroring the
	// teacher's single consensusMu protecting consensus state across the
	// acceptor, readLoop and update goroutines (agent-tcp/agent.go).
	mu      sync.Mutex
	state   roundState
	round   *highlander.Round
	lastComputedWinner highlander.PeerIdentity
	conns   map[net.Conn]*peerConn
	byPeer  map[highlander.PeerIdentity]*peerConn

	subsMu sync.Mutex
	subs   []chan *highlander.Block

	die     chan struct{}
	dieOnce sync.Once
}

// New creates and starts a Highlander node from config (spec §6). It opens
// the block store, starts listening, and launches the orchestrator's
// goroutines (acceptor, I/O dispatch, round timers) before returning.
func New(cfg highlander.Config) (*Peer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.ForceRestart {
		if err := store.Wipe(cfg.Folder); err != nil {
			return nil, err
		}
	}

	bs, err := store.Open(cfg.Folder, store.Options{
		Thin:          cfg.Thin,
		ThinRetention: cfg.ThinRetention,
		OwnIdentity:   highlander.IdentityFromPublicKey(&cfg.PrivateKey.PublicKey),
	})
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		bs.Close()
		return nil, highlander.ErrIONet
	}

	watcher, err := gaio.NewWatcher()
	if err != nil {
		ln.Close()
		bs.Close()
		return nil, err
	}

	a := &agentImpl{
		cfg:        cfg,
		identity:   highlander.IdentityFromPublicKey(&cfg.PrivateKey.PublicKey),
		listener:   ln,
		watcher:    watcher,
		registry:   registry.New(),
		blockStore: bs,
		timedSched: timer.NewTimedSched(),
		seen:       newSeenSet(),
		log:        log.New(log.Writer(), "highlander: ", log.LstdFlags),
		conns:      make(map[net.Conn]*peerConn),
		byPeer:     make(map[highlander.PeerIdentity]*peerConn),
		die:        make(chan struct{}),
	}

	for _, founder := range cfg.FoundingPeers {
		a.registry.Learn(founder.Identity, founder.Addr)
	}

	if _, hasTip := a.blockStore.Tip(); hasTip {
		a.state = stateIdle
	} else {
		a.state = stateBootstrapping
	}

	go a.acceptLoop()
	go a.ioLoop()
	go a.dialLoop()
	a.timedSched.Put(a.runKeepAlive, time.Now().Add(cfg.KeepAlive))

	if a.state == stateIdle {
		a.startRound()
	} else if len(cfg.FoundingPeers) <= 1 {
		// No founding set, or a founding set of exactly this node: nobody
		// to bootstrap a chain from, so skip straight to Idle and author
		// genesis alone (chain invariant 4).
		a.state = stateIdle
		a.startRound()
	}

	p := &Peer{agentImpl: a}
	runtime.SetFinalizer(p, func(p *Peer) { p.Close() })
	return p, nil
}

// Close shuts the node down: broadcasts Bye, stops accepting, drains peer
// state, flushes the block store (spec §5).
func (a *agentImpl) Close() error {
	var err error
	a.dieOnce.Do(func() {
		a.mu.Lock()
		for _, pc := range a.conns {
			a.sendRaw(pc, highlander.EncodeBye())
			pc.conn.Close()
		}
		a.mu.Unlock()

		a.listener.Close()
		a.watcher.Close()
		a.timedSched.Close()
		err = a.blockStore.Close()
		close(a.die)

		a.subsMu.Lock()
		for _, ch := range a.subs {
			close(ch)
		}
		a.subs = nil
		a.subsMu.Unlock()
	})
	return err
}

// Connect dials addr and performs the handshake (spec §6: "connect(addr)
// -> future<()>"). Returns once this node's Hello is sent and the first
// read is submitted; the peer's reply is processed later by ioLoop.
func (a *agentImpl) Connect(addr string) error {
	select {
	case <-a.die:
		return highlander.ErrClosed
	default:
	}

	conn, err := dial(addr, a.cfg.Proxy, defaultIODeadline)
	if err != nil {
		return highlander.ErrIONet
	}

	pc := newPeerConn(conn, true)
	pc.addr = addr

	a.mu.Lock()
	a.conns[conn] = pc
	a.mu.Unlock()

	if err := a.sendHello(pc); err != nil {
		conn.Close()
		return err
	}
	return a.submitNextRead(pc)
}

// Share signs payload as a PendingDatum authored by this node and gossips
// it to every connected peer (spec §6).
func (a *agentImpl) Share(payload []byte) error {
	select {
	case <-a.die:
		return highlander.ErrClosed
	default:
	}

	datum, err := highlander.SignDatum(a.cfg.PrivateKey, payload)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.round != nil {
		a.round.AddDatum(datum)
	}
	peers := a.connectedLocked()
	a.mu.Unlock()

	a.seen.SeenDurable(datum.Key())
	frame := highlander.EncodePendingData(&highlander.PendingDataMsg{Datum: datum})
	for _, pc := range peers {
		a.sendRaw(pc, frame)
	}
	return nil
}

// SetOnBlockCreation installs the pending-data transform callback the
// round's winner invokes before sealing a block (spec §6).
func (a *agentImpl) SetOnBlockCreation(cb highlander.OnBlockCreation) {
	a.mu.Lock()
	a.cfg.OnBlockCreation = cb
	a.mu.Unlock()
}

// LastBlockReceiver returns a new, independent, bounded-buffer channel of
// confirmed blocks (spec §6: "lazy, infinite, restartable per subscriber").
// A slow subscriber drops its oldest buffered block with a logged warning
// rather than blocking the orchestrator.
func (a *agentImpl) LastBlockReceiver() <-chan *highlander.Block {
	ch := make(chan *highlander.Block, blockFeedBuffer)
	a.subsMu.Lock()
	a.subs = append(a.subs, ch)
	a.subsMu.Unlock()
	return ch
}

func (a *agentImpl) publishBlock(b *highlander.Block) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- b:
		default:
			// Lagging subscriber: drop the oldest buffered block to make
			// room, per spec §6's documented lag policy.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- b:
			default:
			}
			a.log.Printf("warning: subscriber lagging, dropped oldest block")
		}
	}
}

func (a *agentImpl) connectedLocked() []*peerConn {
	out := make([]*peerConn, 0, len(a.byPeer))
	for _, pc := range a.byPeer {
		if pc.handshakeDone {
			out = append(out, pc)
		}
	}
	return out
}

// acceptLoop accepts inbound connections, grounded on the teacher's
// acceptor (agent-tcp/agent.go).
func (a *agentImpl) acceptLoop() {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			return
		}
		pc := newPeerConn(conn, false)
		a.mu.Lock()
		a.conns[conn] = pc
		a.mu.Unlock()
		if err := a.submitNextRead(pc); err != nil {
			conn.Close()
		}
	}
}

// dialLoop periodically tops up live connections toward
// Config.RelationshipCount by dialing known, currently-offline peers
// (spec §4.6, §6 "relationship_count"/"relationship_time").
func (a *agentImpl) dialLoop() {
	ticker := time.NewTicker(a.cfg.RelationshipTime)
	defer ticker.Stop()
	for {
		select {
		case <-a.die:
			return
		case <-ticker.C:
			candidates := a.registry.DialCandidates(a.cfg.RelationshipCount, a.cfg.RelationshipRetry)
			for _, c := range candidates {
				a.registry.IncrementDialAttempts(c.Identity)
				go func(addr string) {
					if addr == "" {
						return
					}
					_ = a.Connect(addr)
				}(c.Addr)
			}
		}
	}
}

// runKeepAlive sends KeepAlive to every connection due for one and closes
// any connection idle past 2x keep_alive (spec §4.5 step 4). Reschedules
// itself, mirroring the teacher's self-rescheduling update() on
// timedSched.
func (a *agentImpl) runKeepAlive() {
	select {
	case <-a.die:
		return
	default:
	}

	now := time.Now()
	a.mu.Lock()
	var idle []*peerConn
	var due []*peerConn
	for _, pc := range a.byPeer {
		if pc.session != nil && pc.session.Idle(now, a.cfg.KeepAlive) {
			idle = append(idle, pc)
			continue
		}
		if now.Sub(pc.lastKeepAliveSent) >= a.cfg.KeepAlive {
			due = append(due, pc)
		}
	}
	a.mu.Unlock()

	for _, pc := range due {
		a.sendRaw(pc, highlander.EncodeKeepAlive())
		pc.lastKeepAliveSent = now
		if pc.session != nil {
			pc.session.LastSent = now
		}
	}
	for _, pc := range idle {
		a.dropPeer(pc, highlander.ErrPeerIdle)
	}

	a.timedSched.Put(a.runKeepAlive, time.Now().Add(a.cfg.KeepAlive))
}

// dropPeer tears a connection down and removes it from the registry's live
// set (spec §4.5 step 5).
func (a *agentImpl) dropPeer(pc *peerConn, reason error) {
	a.mu.Lock()
	delete(a.conns, pc.conn)
	if !pc.remote.IsZero() {
		delete(a.byPeer, pc.remote)
	}
	a.mu.Unlock()

	if !pc.remote.IsZero() {
		a.registry.MarkDisconnected(pc.remote)
	}
	pc.conn.Close()
	if reason != nil {
		a.log.Printf("peer disconnected: %v", reason)
	}
}
