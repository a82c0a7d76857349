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

import "crypto/ecdsa"

// MessageTag identifies the kind of payload inside a decrypted frame
// (spec §4.2).
type MessageTag byte

const (
	TagHello MessageTag = iota
	TagIntroduce
	TagKeepAlive
	TagPendingData
	TagThrows
	TagBlock
	TagRequestBlocks
	TagBlocks
	TagBye
)

// Hello is the first frame after transport connect (spec §4.2). It is
// already encrypted under the ECDH key derived from both peers' long-term
// keys, so it rides the ordinary tagged-frame path like every other
// message (see SPEC_FULL.md §4.3 for why no separate handshake envelope
// format is used).
type Hello struct {
	Pubkey     PeerIdentity
	ListenAddr string
}

// PeerAddr pairs an identity with its dialable network address, used in
// Introduce gossip (spec §4.2) and the peer registry.
type PeerAddr struct {
	Identity PeerIdentity
	Addr     string
}

// Introduce announces a set of known peers (spec §4.6). It is sent once per
// session, when the handshake completes; it is not re-sent periodically.
type Introduce struct {
	Peers []PeerAddr
}

// KeepAlive carries no data; its arrival alone resets session idle
// tracking (spec §4.2, §4.5).
type KeepAlive struct{}

// PendingDataMsg gossips a single signed blob (spec §4.2).
type PendingDataMsg struct {
	Datum PendingDatum
}

// ThrowsMsg commits a peer's tournament choices for the round identified
// by RoundSeed (spec §3, §4.2). Signature covers RoundSeed||Throws.
type ThrowsMsg struct {
	RoundSeed [32]byte
	Throws    ThrowVector
	Author    PeerIdentity
	Signature []byte
}

// hash returns the signed preimage of a ThrowsMsg.
func (m *ThrowsMsg) hash() [32]byte {
	e := NewEncoder()
	e.WriteFixed(m.RoundSeed[:])
	encodeThrowVector(e, m.Throws)
	return SHA256(e.Bytes())
}

// SignThrows builds and signs a ThrowsMsg committing throws for roundSeed.
func SignThrows(priv *ecdsa.PrivateKey, roundSeed [32]byte, throws ThrowVector) (*ThrowsMsg, error) {
	m := &ThrowsMsg{
		RoundSeed: roundSeed,
		Throws:    throws,
		Author:    IdentityFromPublicKey(&priv.PublicKey),
	}
	hash := m.hash()
	sig, err := Sign(priv, hash[:])
	if err != nil {
		return nil, err
	}
	m.Signature = sig
	return m, nil
}

// Verify checks a ThrowsMsg's author signature.
func (m *ThrowsMsg) Verify() bool {
	pub, err := m.Author.PublicKey()
	if err != nil {
		return false
	}
	hash := m.hash()
	return Verify(pub, hash[:], m.Signature)
}

// BlockMsg announces a new block (spec §4.2).
type BlockMsg struct {
	Block *Block
}

// RequestBlocksMsg requests a chain sync starting at FromHeight
// (spec §4.2, SPEC_FULL.md §3).
type RequestBlocksMsg struct {
	FromHeight uint64
}

// BlocksMsg answers a RequestBlocksMsg.
type BlocksMsg struct {
	Blocks []*Block
}

// Bye signals a graceful shutdown (spec §4.2, §5).
type Bye struct{}

// EncodeMessage writes tag and payload into a single buffer: the bytes
// that are then encrypted into a frame body.
func EncodeMessage(tag MessageTag, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(tag)
	copy(out[1:], payload)
	return out
}

// EncodeHello encodes a Hello payload.
func EncodeHello(h *Hello) []byte {
	e := NewEncoder()
	e.WriteFixed(h.Pubkey[:])
	e.WriteBytes([]byte(h.ListenAddr))
	return EncodeMessage(TagHello, e.Bytes())
}

// DecodeHello decodes a Hello payload (without the leading tag byte).
func DecodeHello(payload []byte) (*Hello, error) {
	d := NewDecoder(payload)
	h := new(Hello)
	idBytes, err := d.ReadFixed(IdentitySize)
	if err != nil {
		return nil, err
	}
	copy(h.Pubkey[:], idBytes)
	addr, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	h.ListenAddr = string(addr)
	return h, nil
}

// EncodeIntroduce encodes an Introduce payload.
func EncodeIntroduce(m *Introduce) []byte {
	e := NewEncoder()
	e.WriteUint32(uint32(len(m.Peers)))
	for _, p := range m.Peers {
		e.WriteFixed(p.Identity[:])
		e.WriteBytes([]byte(p.Addr))
	}
	return EncodeMessage(TagIntroduce, e.Bytes())
}

// DecodeIntroduce decodes an Introduce payload.
func DecodeIntroduce(payload []byte) (*Introduce, error) {
	d := NewDecoder(payload)
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	m := &Introduce{Peers: make([]PeerAddr, n)}
	for i := range m.Peers {
		idBytes, err := d.ReadFixed(IdentitySize)
		if err != nil {
			return nil, err
		}
		copy(m.Peers[i].Identity[:], idBytes)
		addr, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		m.Peers[i].Addr = string(addr)
	}
	return m, nil
}

// EncodeKeepAlive encodes an empty KeepAlive payload.
func EncodeKeepAlive() []byte { return EncodeMessage(TagKeepAlive, nil) }

// EncodePendingData encodes a PendingDataMsg payload.
func EncodePendingData(m *PendingDataMsg) []byte {
	e := NewEncoder()
	encodeDatum(e, m.Datum)
	return EncodeMessage(TagPendingData, e.Bytes())
}

// DecodePendingData decodes a PendingDataMsg payload.
func DecodePendingData(payload []byte) (*PendingDataMsg, error) {
	d := NewDecoder(payload)
	datum, err := decodeDatum(d)
	if err != nil {
		return nil, err
	}
	return &PendingDataMsg{Datum: datum}, nil
}

// EncodeThrows encodes a ThrowsMsg payload.
func EncodeThrows(m *ThrowsMsg) []byte {
	e := NewEncoder()
	e.WriteFixed(m.RoundSeed[:])
	encodeThrowVector(e, m.Throws)
	e.WriteFixed(m.Author[:])
	e.WriteBytes(m.Signature)
	return EncodeMessage(TagThrows, e.Bytes())
}

// DecodeThrows decodes a ThrowsMsg payload.
func DecodeThrows(payload []byte) (*ThrowsMsg, error) {
	d := NewDecoder(payload)
	m := new(ThrowsMsg)
	seed, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	copy(m.RoundSeed[:], seed)

	m.Throws, err = decodeThrowVector(d)
	if err != nil {
		return nil, err
	}

	author, err := d.ReadFixed(IdentitySize)
	if err != nil {
		return nil, err
	}
	copy(m.Author[:], author)

	m.Signature, err = d.ReadBytes()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeBlock encodes a BlockMsg payload.
func EncodeBlock(m *BlockMsg) []byte {
	e := NewEncoder()
	e.WriteBytes(m.Block.Encode())
	return EncodeMessage(TagBlock, e.Bytes())
}

// DecodeBlockMsg decodes a BlockMsg payload.
func DecodeBlockMsg(payload []byte) (*BlockMsg, error) {
	d := NewDecoder(payload)
	raw, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	block, err := DecodeBlock(raw)
	if err != nil {
		return nil, err
	}
	return &BlockMsg{Block: block}, nil
}

// EncodeRequestBlocks encodes a RequestBlocksMsg payload.
func EncodeRequestBlocks(m *RequestBlocksMsg) []byte {
	e := NewEncoder()
	e.WriteUint64(m.FromHeight)
	return EncodeMessage(TagRequestBlocks, e.Bytes())
}

// DecodeRequestBlocks decodes a RequestBlocksMsg payload.
func DecodeRequestBlocks(payload []byte) (*RequestBlocksMsg, error) {
	d := NewDecoder(payload)
	h, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &RequestBlocksMsg{FromHeight: h}, nil
}

// EncodeBlocks encodes a BlocksMsg payload.
func EncodeBlocks(m *BlocksMsg) []byte {
	e := NewEncoder()
	e.WriteUint32(uint32(len(m.Blocks)))
	for _, b := range m.Blocks {
		e.WriteBytes(b.Encode())
	}
	return EncodeMessage(TagBlocks, e.Bytes())
}

// DecodeBlocks decodes a BlocksMsg payload.
func DecodeBlocks(payload []byte) (*BlocksMsg, error) {
	d := NewDecoder(payload)
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	m := &BlocksMsg{Blocks: make([]*Block, n)}
	for i := range m.Blocks {
		raw, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		m.Blocks[i], err = DecodeBlock(raw)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EncodeBye encodes an empty Bye payload.
func EncodeBye() []byte { return EncodeMessage(TagBye, nil) }
