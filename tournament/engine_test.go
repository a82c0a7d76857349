package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tildenet/highlander"
)

// participantSet generates n identities and a throw vector for each, long
// enough to cover any bracket built from them.
func participantSet(t *testing.T, n int) ([]highlander.PeerIdentity, map[highlander.PeerIdentity]highlander.ThrowVector) {
	seed := highlander.SHA256([]byte("round seed"))
	ids := make([]highlander.PeerIdentity, n)
	throws := make(map[highlander.PeerIdentity]highlander.ThrowVector)

	depth := levels(nextPowerOfTwo(n)) + 1
	for i := 0; i < n; i++ {
		priv, err := highlander.GenerateKey()
		assert.Nil(t, err)
		id := highlander.IdentityFromPublicKey(&priv.PublicKey)
		ids[i] = id
		throws[id] = highlander.DeriveThrowVector(priv, seed, depth)
	}
	return ids, throws
}

func TestWalkSingleParticipantWinsByDefault(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 1)
	b := BuildBracket(seed, ids)
	winner, results, err := Walk(b, throws)
	assert.Nil(t, err)
	assert.Nil(t, results)
	assert.Equal(t, ids[0], winner)
}

func TestWalkTwoParticipants(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 2)
	b := BuildBracket(seed, ids)
	winner, results, err := Walk(b, throws)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(results))
	assert.True(t, winner == ids[0] || winner == ids[1])
}

func TestWalkDeterministicAcrossIdenticalInputs(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 5)
	b1 := BuildBracket(seed, ids)
	b2 := BuildBracket(seed, ids)

	w1, _, err := Walk(b1, throws)
	assert.Nil(t, err)
	w2, _, err := Walk(b2, throws)
	assert.Nil(t, err)
	assert.Equal(t, w1, w2)
}

func TestWalkIncompleteThrowsErrors(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 4)
	delete(throws, ids[0])

	b := BuildBracket(seed, ids)
	_, _, err := Walk(b, throws)
	assert.Equal(t, ErrIncompleteThrows, err)
}

func TestWalkWinnerIsAlwaysAParticipant(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 3)
	b := BuildBracket(seed, ids)

	winner, _, err := Walk(b, throws)
	assert.Nil(t, err)

	found := false
	for _, id := range ids {
		if id == winner {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIsLateWinnerDetectsLastArrival(t *testing.T) {
	ids, _ := participantSet(t, 3)
	now := time.Now()
	received := map[highlander.PeerIdentity]time.Time{
		ids[0]: now,
		ids[1]: now.Add(time.Second),
		ids[2]: now.Add(2 * time.Second),
	}
	assert.True(t, IsLateWinner(ids, received, ids[2]))
	assert.False(t, IsLateWinner(ids, received, ids[0]))
}

func TestRunnersUpExcludesByes(t *testing.T) {
	seed := highlander.SHA256([]byte("seed"))
	ids, throws := participantSet(t, 3)
	b := BuildBracket(seed, ids)
	_, results, err := Walk(b, throws)
	assert.Nil(t, err)

	runnersUp := RunnersUp(results, 1)
	assert.Equal(t, 1, len(runnersUp))
}
