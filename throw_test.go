package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrowBeats(t *testing.T) {
	assert.True(t, Rock.Beats(Scissors))
	assert.True(t, Scissors.Beats(Paper))
	assert.True(t, Paper.Beats(Rock))

	assert.False(t, Rock.Beats(Paper))
	assert.False(t, Rock.Beats(Rock))
}

func TestDeriveThrowVectorDeterministic(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	seed := SHA256([]byte("round 1 seed"))
	v1 := DeriveThrowVector(priv, seed, 8)
	v2 := DeriveThrowVector(priv, seed, 8)
	assert.Equal(t, v1, v2)

	otherSeed := SHA256([]byte("round 2 seed"))
	v3 := DeriveThrowVector(priv, otherSeed, 8)
	assert.NotEqual(t, v1, v3)
}

func TestDeriveThrowVectorBeyondDigestLength(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	seed := SHA256([]byte("deep bracket"))
	v := DeriveThrowVector(priv, seed, 40)
	assert.Equal(t, 40, len(v))
	for _, throw := range v {
		assert.True(t, throw == Rock || throw == Paper || throw == Scissors)
	}
}

func TestThrowVectorEncodeDecode(t *testing.T) {
	v := ThrowVector{Rock, Paper, Scissors, Rock}
	e := NewEncoder()
	encodeThrowVector(e, v)

	d := NewDecoder(e.Bytes())
	out, err := decodeThrowVector(d)
	assert.Nil(t, err)
	assert.Equal(t, v, out)
}

func TestThrowVectorDecodeRejectsInvalidByte(t *testing.T) {
	e := NewEncoder()
	e.WriteUint32(1)
	e.WriteByte(0xff)

	d := NewDecoder(e.Bytes())
	_, err := decodeThrowVector(d)
	assert.Equal(t, ErrProtocolBadFrame, err)
}
