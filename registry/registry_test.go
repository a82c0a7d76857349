package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tildenet/highlander"
)

func newIdentity(b byte) highlander.PeerIdentity {
	var id highlander.PeerIdentity
	id[0] = b
	return id
}

func TestLearnReportsNewPeers(t *testing.T) {
	r := New()
	a := newIdentity(1)

	assert.True(t, r.Learn(a, "127.0.0.1:4000"))
	assert.False(t, r.Learn(a, "127.0.0.1:4001"))

	info, ok := r.Get(a)
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1:4001", info.Addr)
}

func TestConnectionsIsSubsetOfAllKnown(t *testing.T) {
	r := New()
	a, b := newIdentity(1), newIdentity(2)
	r.Learn(a, "addr-a")
	r.Learn(b, "addr-b")
	r.MarkConnected(a, "addr-a")

	assert.Len(t, r.AllKnown(), 2)
	assert.Len(t, r.Connections(), 1)
	assert.Equal(t, a, r.Connections()[0].Identity)
}

func TestMarkDisconnectedHalvesStrength(t *testing.T) {
	r := New()
	a := newIdentity(1)
	r.Learn(a, "addr-a")
	r.MarkConnected(a, "addr-a")
	for i := 0; i < 5; i++ {
		r.Touch(a)
	}

	info, _ := r.Get(a)
	assert.Equal(t, 5, info.RelationshipStrength)

	r.MarkDisconnected(a)
	info, _ = r.Get(a)
	assert.Equal(t, 2, info.RelationshipStrength)
	assert.False(t, info.Connected)
}

func TestDialCandidatesExcludesConnectedAndExhaustedRetries(t *testing.T) {
	r := New()
	a, b, c := newIdentity(1), newIdentity(2), newIdentity(3)
	r.Learn(a, "addr-a")
	r.Learn(b, "addr-b")
	r.Learn(c, "addr-c")
	r.MarkConnected(a, "addr-a")

	for i := 0; i < 3; i++ {
		r.IncrementDialAttempts(b)
	}

	candidates := r.DialCandidates(3, 3)
	assert.Len(t, candidates, 1)
	assert.Equal(t, c, candidates[0].Identity)
}

func TestDialCandidatesNoneWhenTargetReached(t *testing.T) {
	r := New()
	a, b := newIdentity(1), newIdentity(2)
	r.Learn(a, "addr-a")
	r.Learn(b, "addr-b")
	r.MarkConnected(a, "addr-a")
	r.MarkConnected(b, "addr-b")

	assert.Empty(t, r.DialCandidates(2, 3))
}
