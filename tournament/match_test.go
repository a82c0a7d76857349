package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tildenet/highlander"
)

func TestResolveMatchStandardRules(t *testing.T) {
	var a, b highlander.PeerIdentity
	a[0], b[0] = 0x01, 0x02

	r := resolveMatch(0, 0, a, b, false, false, highlander.Rock, highlander.Scissors)
	assert.Equal(t, a, r.Winner)

	r = resolveMatch(0, 0, a, b, false, false, highlander.Scissors, highlander.Rock)
	assert.Equal(t, b, r.Winner)
}

func TestResolveMatchTieBreaksOnSmallerPubkey(t *testing.T) {
	var a, b highlander.PeerIdentity
	a[0], b[0] = 0x01, 0x02

	r := resolveMatch(0, 0, a, b, false, false, highlander.Rock, highlander.Rock)
	assert.Equal(t, a, r.Winner)

	r = resolveMatch(0, 0, b, a, false, false, highlander.Rock, highlander.Rock)
	assert.Equal(t, a, r.Winner)
}

func TestResolveMatchByeAlwaysLoses(t *testing.T) {
	var a highlander.PeerIdentity
	a[0] = 0x01

	r := resolveMatch(0, 0, a, highlander.PeerIdentity{}, false, true, highlander.Rock, highlander.Rock)
	assert.Equal(t, a, r.Winner)

	r = resolveMatch(0, 0, highlander.PeerIdentity{}, a, true, false, highlander.Rock, highlander.Rock)
	assert.Equal(t, a, r.Winner)
}
