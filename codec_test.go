package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncoderDecoderRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x7f)
	e.WriteUint32(1234)
	e.WriteUint64(9876543210)
	e.WriteFixed([]byte{1, 2, 3, 4})
	e.WriteBytes([]byte("variable length payload"))

	d := NewDecoder(e.Bytes())
	b, err := d.ReadByte()
	assert.Nil(t, err)
	assert.Equal(t, byte(0x7f), b)

	u32, err := d.ReadUint32()
	assert.Nil(t, err)
	assert.Equal(t, uint32(1234), u32)

	u64, err := d.ReadUint64()
	assert.Nil(t, err)
	assert.Equal(t, uint64(9876543210), u64)

	fixed, err := d.ReadFixed(4)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, fixed)

	variable, err := d.ReadBytes()
	assert.Nil(t, err)
	assert.Equal(t, []byte("variable length payload"), variable)

	assert.True(t, d.Done())
}

func TestDecoderFailsClosedOnTruncation(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	_, err := d.ReadUint64()
	assert.Equal(t, ErrProtocolBadFrame, err)

	d2 := NewDecoder([]byte{0xff, 0xff, 0xff, 0x7f})
	_, err = d2.ReadBytes()
	assert.Equal(t, ErrProtocolBadFrame, err)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := []byte("repeated repeated repeated repeated data compresses well")
	compressed := CompressData(original)
	decompressed, err := DecompressData(compressed)
	assert.Nil(t, err)
	assert.Equal(t, original, decompressed)
}

func TestSealOpenFrameRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], SHA256([]byte("frame key"))[:])

	payload := EncodeMessage(TagKeepAlive, nil)
	sealed, err := SealFrame(key, payload)
	assert.Nil(t, err)

	length := uint32(sealed[0]) | uint32(sealed[1])<<8 | uint32(sealed[2])<<16 | uint32(sealed[3])<<24
	ciphertext := sealed[LengthPrefixSize:]
	assert.Equal(t, int(length), len(ciphertext))

	opened, err := OpenFrame(key, ciphertext)
	assert.Nil(t, err)
	assert.Equal(t, payload, opened)
}
