package highlander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	hash := SHA256([]byte("hello highlander"))
	sig, err := Sign(priv, hash[:])
	assert.Nil(t, err)
	assert.True(t, Verify(&priv.PublicKey, hash[:], sig))

	other, err := GenerateKey()
	assert.Nil(t, err)
	assert.False(t, Verify(&other.PublicKey, hash[:], sig))
}

func TestECDHAgreement(t *testing.T) {
	alice, err := GenerateKey()
	assert.Nil(t, err)
	bob, err := GenerateKey()
	assert.Nil(t, err)

	secretA := ECDH(alice, &bob.PublicKey)
	secretB := ECDH(bob, &alice.PublicKey)
	assert.Equal(t, secretA, secretB)
}

func TestAESFrameRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], SHA256([]byte("session key"))[:])

	plaintext := []byte("a pending datum payload of arbitrary length")
	ciphertext, err := EncryptFrame(key, plaintext)
	assert.Nil(t, err)

	decrypted, err := DecryptFrame(key, ciphertext)
	assert.Nil(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESFrameRejectsCorruption(t *testing.T) {
	var key [32]byte
	ciphertext, err := EncryptFrame(key, []byte("payload"))
	assert.Nil(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xff
	_, err = DecryptFrame(key, ciphertext)
	assert.NotNil(t, err)
}

func TestIdentityRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	assert.Nil(t, err)

	id := IdentityFromPublicKey(&priv.PublicKey)
	pub, err := id.PublicKey()
	assert.Nil(t, err)
	assert.Equal(t, 0, pub.X.Cmp(priv.PublicKey.X))
	assert.Equal(t, 0, pub.Y.Cmp(priv.PublicKey.Y))
}

func TestSmallestIdentity(t *testing.T) {
	var a, b, c PeerIdentity
	a[0], b[0], c[0] = 0x02, 0x01, 0x03
	smallest := SmallestIdentity([]PeerIdentity{a, b, c})
	assert.Equal(t, b, smallest)
}
