package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tildenet/highlander"
)

func randIdentity(t *testing.T, seed byte) highlander.PeerIdentity {
	priv, err := highlander.GenerateKey()
	assert.Nil(t, err)
	return highlander.IdentityFromPublicKey(&priv.PublicKey)
}

func TestBuildBracketEmptyReturnsNil(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	assert.Nil(t, BuildBracket(seed, nil))
}

func TestBuildBracketSingleParticipant(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	a := randIdentity(t, 1)
	b := BuildBracket(seed, []highlander.PeerIdentity{a})
	assert.Equal(t, 1, len(b.Seats))
	assert.Equal(t, 0, b.Levels)
	assert.Equal(t, []highlander.PeerIdentity{a}, b.Participants())
}

func TestBuildBracketPadsWithByes(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids := []highlander.PeerIdentity{randIdentity(t, 1), randIdentity(t, 2), randIdentity(t, 3)}
	b := BuildBracket(seed, ids)
	assert.Equal(t, 4, len(b.Seats))
	assert.Equal(t, 2, b.Levels)

	byeCount := 0
	for _, s := range b.Seats {
		if s.IsBye {
			byeCount++
		}
	}
	assert.Equal(t, 1, byeCount)
	assert.Equal(t, 3, len(b.Participants()))
}

func TestBuildBracketDeterministic(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids := []highlander.PeerIdentity{randIdentity(t, 1), randIdentity(t, 2), randIdentity(t, 3), randIdentity(t, 4)}

	b1 := BuildBracket(seed, ids)
	// Shuffle input order; bracket must be identical regardless.
	shuffled := []highlander.PeerIdentity{ids[2], ids[0], ids[3], ids[1]}
	b2 := BuildBracket(seed, shuffled)

	assert.Equal(t, b1.Seats, b2.Seats)
}

func TestBuildBracketDiffersAcrossSeeds(t *testing.T) {
	ids := []highlander.PeerIdentity{randIdentity(t, 1), randIdentity(t, 2), randIdentity(t, 3), randIdentity(t, 4)}
	b1 := BuildBracket(highlander.SHA256([]byte("seed a")), ids)
	b2 := BuildBracket(highlander.SHA256([]byte("seed b")), ids)
	assert.NotEqual(t, b1.Seats, b2.Seats)
}
