package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelloEncodeDecode(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	h := &Hello{Pubkey: IdentityFromPublicKey(&priv.PublicKey), ListenAddr: "127.0.0.1:4680"}

	frame := EncodeHello(h)
	assert.Equal(t, byte(TagHello), frame[0])

	decoded, err := DecodeHello(frame[1:])
	assert.Nil(t, err)
	assert.Equal(t, h, decoded)
}

func TestIntroduceEncodeDecode(t *testing.T) {
	var a, b PeerIdentity
	a[0], b[0] = 0x01, 0x02
	m := &Introduce{Peers: []PeerAddr{
		{Identity: a, Addr: "10.0.0.1:4680"},
		{Identity: b, Addr: "10.0.0.2:4680"},
	}}

	frame := EncodeIntroduce(m)
	decoded, err := DecodeIntroduce(frame[1:])
	assert.Nil(t, err)
	assert.Equal(t, m, decoded)
}

func TestPendingDataEncodeDecode(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	d, err := SignDatum(priv, []byte("gossip payload"))
	assert.Nil(t, err)

	frame := EncodePendingData(&PendingDataMsg{Datum: d})
	decoded, err := DecodePendingData(frame[1:])
	assert.Nil(t, err)
	assert.Equal(t, d, decoded.Datum)
}

func TestSignThrowsVerify(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	seed := SHA256([]byte("round seed"))
	throws := ThrowVector{Rock, Paper, Scissors}

	m, err := SignThrows(priv, seed, throws)
	assert.Nil(t, err)
	assert.True(t, m.Verify())

	frame := EncodeThrows(m)
	decoded, err := DecodeThrows(frame[1:])
	assert.Nil(t, err)
	assert.True(t, decoded.Verify())
	assert.Equal(t, m.RoundSeed, decoded.RoundSeed)
	assert.Equal(t, m.Throws, decoded.Throws)
}

func TestSignThrowsRejectsTamperedVector(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	seed := SHA256([]byte("round seed"))
	m, err := SignThrows(priv, seed, ThrowVector{Rock})
	assert.Nil(t, err)

	m.Throws = ThrowVector{Paper}
	assert.False(t, m.Verify())
}

func TestBlockMsgEncodeDecode(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)
	b := &Block{Height: 3, Author: author, GameTranscript: []byte("transcript")}
	assert.Nil(t, b.Sign(priv))

	frame := EncodeBlock(&BlockMsg{Block: b})
	decoded, err := DecodeBlockMsg(frame[1:])
	assert.Nil(t, err)
	assert.Equal(t, b.Hash(), decoded.Block.Hash())
}

func TestRequestBlocksAndBlocksEncodeDecode(t *testing.T) {
	req := &RequestBlocksMsg{FromHeight: 42}
	frame := EncodeRequestBlocks(req)
	decoded, err := DecodeRequestBlocks(frame[1:])
	assert.Nil(t, err)
	assert.Equal(t, req, decoded)

	priv, err := GenerateKey()
	assert.Nil(t, err)
	author := IdentityFromPublicKey(&priv.PublicKey)
	b1 := &Block{Height: 1, Author: author}
	assert.Nil(t, b1.Sign(priv))
	b2 := &Block{Height: 2, Author: author, PrevHash: b1.Hash()}
	assert.Nil(t, b2.Sign(priv))

	blocksFrame := EncodeBlocks(&BlocksMsg{Blocks: []*Block{b1, b2}})
	decodedBlocks, err := DecodeBlocks(blocksFrame[1:])
	assert.Nil(t, err)
	assert.Equal(t, 2, len(decodedBlocks.Blocks))
	assert.Equal(t, b1.Hash(), decodedBlocks.Blocks[0].Hash())
	assert.Equal(t, b2.Hash(), decodedBlocks.Blocks[1].Hash())
}

func TestKeepAliveAndByeEncode(t *testing.T) {
	assert.Equal(t, byte(TagKeepAlive), EncodeKeepAlive()[0])
	assert.Equal(t, byte(TagBye), EncodeBye()[0])
}
