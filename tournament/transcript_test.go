package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tildenet/highlander"
)

func signedCommitments(t *testing.T, seed [32]byte, n int) ([]*highlander.ThrowsMsg, highlander.PeerIdentity) {
	depth := levels(nextPowerOfTwo(n)) + 1
	commitments := make([]*highlander.ThrowsMsg, n)
	ids := make([]highlander.PeerIdentity, n)
	keyed := make(map[highlander.PeerIdentity]highlander.ThrowVector)

	for i := 0; i < n; i++ {
		priv, err := highlander.GenerateKey()
		assert.Nil(t, err)
		id := highlander.IdentityFromPublicKey(&priv.PublicKey)
		ids[i] = id
		vec := highlander.DeriveThrowVector(priv, seed, depth)
		keyed[id] = vec

		msg, err := highlander.SignThrows(priv, seed, vec)
		assert.Nil(t, err)
		commitments[i] = msg
	}

	b := BuildBracket(seed, ids)
	winner, _, err := Walk(b, keyed)
	assert.Nil(t, err)
	return commitments, winner
}

func TestTranscriptReplaySucceedsForTrueWinner(t *testing.T) {
	seed := highlander.SHA256([]byte("round seed"))
	commitments, winner := signedCommitments(t, seed, 4)

	transcript := BuildTranscript(seed, commitments)
	assert.Nil(t, transcript.Replay(winner))
}

func TestTranscriptReplayRejectsWrongAuthor(t *testing.T) {
	seed := highlander.SHA256([]byte("round seed"))
	commitments, winner := signedCommitments(t, seed, 4)

	impostor, err := highlander.GenerateKey()
	assert.Nil(t, err)
	impostorID := highlander.IdentityFromPublicKey(&impostor.PublicKey)
	assert.NotEqual(t, winner, impostorID)

	transcript := BuildTranscript(seed, commitments)
	assert.Equal(t, ErrTranscriptWinnerMismatch, transcript.Replay(impostorID))
}

func TestTranscriptReplayRejectsTamperedCommitment(t *testing.T) {
	seed := highlander.SHA256([]byte("round seed"))
	commitments, winner := signedCommitments(t, seed, 4)

	original := commitments[0].Throws[0]
	tampered := (original + 1) % 3
	commitments[0].Throws[0] = tampered

	transcript := BuildTranscript(seed, commitments)
	assert.Equal(t, ErrTranscriptBadCommitment, transcript.Replay(winner))
}

func TestTranscriptEncodeDecodeRoundTrip(t *testing.T) {
	seed := highlander.SHA256([]byte("round seed"))
	commitments, _ := signedCommitments(t, seed, 3)
	transcript := BuildTranscript(seed, commitments)

	encoded := transcript.Encode()
	decoded, err := DecodeTranscript(encoded)
	assert.Nil(t, err)
	assert.Equal(t, transcript.Seed, decoded.Seed)
	assert.Equal(t, len(transcript.Commitments), len(decoded.Commitments))
	for i := range transcript.Commitments {
		assert.Equal(t, transcript.Commitments[i].Author, decoded.Commitments[i].Author)
		assert.Equal(t, transcript.Commitments[i].Throws, decoded.Commitments[i].Throws)
		assert.True(t, decoded.Commitments[i].Verify())
	}
}
