package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignDatumVerify(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	d, err := SignDatum(priv, []byte("payload"))
	assert.Nil(t, err)
	assert.True(t, d.Verify())

	d.Payload = []byte("tampered")
	assert.False(t, d.Verify())
}

func TestDatumEncodeDecode(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	d, err := SignDatum(priv, []byte("payload"))
	assert.Nil(t, err)

	e := NewEncoder()
	encodeDatum(e, d)

	dec := NewDecoder(e.Bytes())
	out, err := decodeDatum(dec)
	assert.Nil(t, err)
	assert.Equal(t, d, out)
	assert.True(t, dec.Done())
}

func TestSortDataOrdering(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	d1, err := SignDatum(priv, []byte("one"))
	assert.Nil(t, err)
	d2, err := SignDatum(priv, []byte("two"))
	assert.Nil(t, err)
	d3, err := SignDatum(priv, []byte("three"))
	assert.Nil(t, err)

	sorted := SortData([]PendingDatum{d3, d1, d2})
	assert.True(t, string(sorted[0].Signature) <= string(sorted[1].Signature))
	assert.True(t, string(sorted[1].Signature) <= string(sorted[2].Signature))
}
