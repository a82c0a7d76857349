// BSD 3-Clause License
//
// Copyright (c) 2024, Highlander Authors
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package highlander

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// GenerateKey creates a new secp256k1 keypair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(btcec.S256(), rand.Reader)
	if err != nil {
		return nil, ErrCryptoKeyGen
	}
	return priv, nil
}

// PrivateKeyFromBytes reconstructs a secp256k1 private key from its raw
// scalar encoding, as written to a peer-book by the highlandernode CLI's
// genkeys command.
func PrivateKeyFromBytes(d []byte) (*ecdsa.PrivateKey, error) {
	priv, _ := btcec.PrivKeyFromBytes(d)
	return priv.ToECDSA(), nil
}

// Sign produces an ECDSA signature over hash using priv. The signature is
// the concatenation of r and s, each left-padded to 32 bytes.
func Sign(priv *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash)
	if err != nil {
		return nil, ErrCryptoSign
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}

// Verify checks an ECDSA signature produced by Sign against pub and hash.
func Verify(pub *ecdsa.PublicKey, hash []byte, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pub, hash, r, s)
}

// SHA256 is the hash primitive mandated by spec §4.1 / §3 for block and
// datum hashing. It is the standard library implementation: SHA-256 is a
// fixed, named algorithm here, not a swappable concern (see DESIGN.md).
func SHA256(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ECDH derives a 32-byte shared secret from a local private key and a
// remote public key, both on secp256k1, by scalar-multiplying the remote
// point and hashing the resulting X coordinate with SHA-256. This
// generalizes the teacher's (unretrieved) ECDH helper referenced in
// agent-tcp/tcp_peer.go against the standard crypto/elliptic-compatible
// btcec curve.
func ECDH(localPriv *ecdsa.PrivateKey, remotePub *ecdsa.PublicKey) [32]byte {
	x, _ := localPriv.Curve.ScalarMult(remotePub.X, remotePub.Y, localPriv.D.Bytes())
	return SHA256(x.Bytes())
}

// EncryptFrame encrypts plaintext with AES-256-CBC under key, prepending a
// fresh random IV to the ciphertext as spec §4.1 requires. The plaintext is
// PKCS#7 padded to the cipher's block size.
func EncryptFrame(key [32]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ErrCryptoKeyGen
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, ErrCryptoKeyGen
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// DecryptFrame reverses EncryptFrame. Returns ErrCryptoDecrypt on any
// malformed input (wrong length, bad padding) rather than silently
// truncating, per spec §4.1's "no silent fallback" requirement.
func DecryptFrame(key [32]byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ErrCryptoKeyGen
	}

	if len(ciphertext) < aes.BlockSize || (len(ciphertext)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, ErrCryptoDecrypt
	}

	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	if len(body) == 0 {
		return nil, ErrCryptoDecrypt
	}

	out := make([]byte, len(body))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, body)

	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCryptoDecrypt
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, ErrCryptoDecrypt
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrCryptoDecrypt
		}
	}
	return data[:len(data)-padLen], nil
}
