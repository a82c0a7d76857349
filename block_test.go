package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenesisBlockSignVerify(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)

	next, err := GenerateKey()
	assert.Nil(t, err)
	nextID := IdentityFromPublicKey(&next.PublicKey)

	b := &Block{
		Height:         0,
		Author:         author,
		NextAuthors:    []PeerIdentity{nextID},
		GameTranscript: []byte("genesis has no game"),
	}
	assert.True(t, b.IsGenesis())

	assert.Nil(t, b.Sign(priv))
	assert.True(t, b.VerifySignature())
	assert.True(t, b.ContainsAuthor(nextID))
	assert.False(t, b.ContainsAuthor(author))
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)

	datumPriv, err := GenerateKey()
	assert.Nil(t, err)
	d1, err := SignDatum(datumPriv, []byte("first"))
	assert.Nil(t, err)
	d2, err := SignDatum(datumPriv, []byte("second"))
	assert.Nil(t, err)

	prev := SHA256([]byte("previous block"))
	b := &Block{
		PrevHash:       prev,
		Height:         7,
		Author:         author,
		NextAuthors:    []PeerIdentity{author},
		GameTranscript: []byte("encoded tournament transcript"),
		Data:           []PendingDatum{d1, d2},
	}
	assert.Nil(t, b.Sign(priv))
	assert.True(t, b.VerifySignature())
	assert.True(t, b.VerifyData())

	encoded := b.Encode()
	decoded, err := DecodeBlock(encoded)
	assert.Nil(t, err)

	assert.Equal(t, b.Hash(), decoded.Hash())
	assert.True(t, decoded.VerifySignature())
	assert.True(t, decoded.VerifyData())
	assert.Equal(t, b.PrevHash, decoded.PrevHash)
	assert.Equal(t, b.Height, decoded.Height)
	assert.Equal(t, b.Author, decoded.Author)
	assert.Equal(t, b.NextAuthors, decoded.NextAuthors)
}

func TestBlockHashChangesWithContent(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)

	b1 := &Block{Height: 1, Author: author, GameTranscript: []byte("a")}
	b2 := &Block{Height: 2, Author: author, GameTranscript: []byte("a")}
	assert.NotEqual(t, b1.Hash(), b2.Hash())
}

func TestBlockVerifySignatureRejectsTamper(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)

	b := &Block{Height: 1, Author: author, GameTranscript: []byte("x")}
	assert.Nil(t, b.Sign(priv))

	b.GameTranscript = []byte("tampered")
	assert.False(t, b.VerifySignature())
}

func TestBlockVerifyDataRejectsBadDatumSignature(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)

	datumPriv, err := GenerateKey()
	assert.Nil(t, err)
	d, err := SignDatum(datumPriv, []byte("payload"))
	assert.Nil(t, err)
	d.Payload = []byte("swapped")

	b := &Block{Height: 1, Author: author, Data: []PendingDatum{d}}
	assert.False(t, b.VerifyData())
}
