package agent

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tildenet/highlander"
)

// TestHandshakeRegistersBothSides exercises the dialer's sendHello path and
// the listener's tryIdentifyDialer trial-decryption path (protocol.go):
// both sides only know each other's identity from the founding peer-book,
// never from a prior session, so the listener must recover the dialer's
// identity purely by trying every known ECDH key against the first inbound
// ciphertext.
func TestHandshakeRegistersBothSides(t *testing.T) {
	privs, founders := newFoundingSet(t, 2, 47800)
	a := newTestPeer(t, privs[0], founders[0].Addr, founders)
	b := newTestPeer(t, privs[1], founders[1].Addr, founders)
	defer a.Close()
	defer b.Close()

	assert.Nil(t, a.Connect(founders[1].Addr))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		_, aHasB := a.byPeer[founders[1].Identity]
		a.mu.Unlock()
		b.mu.Lock()
		_, bHasA := b.byPeer[founders[0].Identity]
		b.mu.Unlock()
		if aHasB && bHasA {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.mu.Lock()
	pcB, aHasB := a.byPeer[founders[1].Identity]
	a.mu.Unlock()
	assert.True(t, aHasB, "dialer should record the listener under its identity")
	if aHasB {
		assert.True(t, pcB.handshakeDone)
	}

	b.mu.Lock()
	pcA, bHasA := b.byPeer[founders[0].Identity]
	b.mu.Unlock()
	assert.True(t, bHasA, "listener should recover the dialer's identity via trial decryption")
	if bHasA {
		assert.True(t, pcA.handshakeDone)
		assert.Equal(t, founders[0].Addr, pcA.addr, "listener should learn the dialer's own listen address from its Hello")
	}

	infoA, ok := b.registry.Get(founders[0].Identity)
	assert.True(t, ok)
	assert.True(t, infoA.Connected)

	infoB, ok := a.registry.Get(founders[1].Identity)
	assert.True(t, ok)
	assert.True(t, infoB.Connected)
}

// TestConnectUnknownAddrFails exercises spec §4.3's requirement that Hello
// already ride an ECDH-derived key: dialing a reachable address with no
// known identity has nothing to derive that key from and must fail rather
// than send an unauthenticated first frame.
func TestConnectUnknownAddrFails(t *testing.T) {
	privs, founders := newFoundingSet(t, 1, 47900)
	a := newTestPeer(t, privs[0], founders[0].Addr, founders)
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	err = a.Connect(ln.Addr().String())
	assert.Equal(t, highlander.ErrProtocolUnexpectedState, err)
}
