package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityLessTotalOrder(t *testing.T) {
	var a, b PeerIdentity
	a[0], b[0] = 0x01, 0x02
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestIdentityIsZero(t *testing.T) {
	var zero PeerIdentity
	assert.True(t, zero.IsZero())

	priv, err := GenerateKey()
	assert.Nil(t, err)
	id := IdentityFromPublicKey(&priv.PublicKey)
	assert.False(t, id.IsZero())
}

func TestSortIdentitiesAscending(t *testing.T) {
	var a, b, c PeerIdentity
	a[0], b[0], c[0] = 0x03, 0x01, 0x02
	sorted := SortIdentities([]PeerIdentity{a, b, c})
	assert.Equal(t, []PeerIdentity{b, c, a}, sorted)
}

func TestPublicKeyRejectsMalformedIdentity(t *testing.T) {
	var bad PeerIdentity
	bad[0] = 0xff
	_, err := bad.PublicKey()
	assert.Equal(t, ErrCryptoKeyGen, err)
}
