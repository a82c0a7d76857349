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

// Block is the content-addressed, hash-chained unit of the Highlander
// chain (spec §3). GameTranscript is carried as opaque, pre-encoded bytes
// here to avoid a package cycle with the tournament package, which owns
// the transcript's concrete structure and both encodes and replays it.
type Block struct {
	PrevHash        [32]byte
	Height          uint64
	Author          PeerIdentity
	NextAuthors     []PeerIdentity
	GameTranscript  []byte
	Data            []PendingDatum
	AuthorSignature []byte
}

// IsGenesis reports whether this block is the chain's genesis block
// (spec §3, chain invariant 1).
func (b *Block) IsGenesis() bool {
	var zero [32]byte
	return b.PrevHash == zero
}

// canonicalEncoding produces the deterministic byte encoding of every
// field except AuthorSignature — the block-hash preimage (spec §3:
// "block_hash = sha256(canonical_encoding(all fields except
// author_signature))"). Data is sorted by signature first, matching the
// canonicalization rule, then Zstd-compressed before it joins the preimage
// (spec §4.2: "Block data is compressed with Zstd before encoding into a
// block").
func (b *Block) canonicalEncoding() []byte {
	e := NewEncoder()
	e.WriteFixed(b.PrevHash[:])
	e.WriteUint64(b.Height)
	e.WriteFixed(b.Author[:])

	e.WriteUint32(uint32(len(b.NextAuthors)))
	for _, a := range b.NextAuthors {
		e.WriteFixed(a[:])
	}

	e.WriteBytes(b.GameTranscript)

	sorted := SortData(b.Data)
	dataEnc := NewEncoder()
	dataEnc.WriteUint32(uint32(len(sorted)))
	for _, d := range sorted {
		encodeDatum(dataEnc, d)
	}
	e.WriteBytes(CompressData(dataEnc.Bytes()))

	return e.Bytes()
}

// Hash returns the block's content-addressed hash (spec §3).
func (b *Block) Hash() [32]byte {
	return SHA256(b.canonicalEncoding())
}

// Sign computes and stores this block's author signature. Must be called
// after every other field is finalized.
func (b *Block) Sign(priv *ecdsa.PrivateKey) error {
	hash := b.Hash()
	sig, err := Sign(priv, hash[:])
	if err != nil {
		return err
	}
	b.AuthorSignature = sig
	return nil
}

// VerifySignature checks the block's author signature against its author
// field (chain invariant 3, spec §3).
func (b *Block) VerifySignature() bool {
	pub, err := b.Author.PublicKey()
	if err != nil {
		return false
	}
	hash := b.Hash()
	return Verify(pub, hash[:], b.AuthorSignature)
}

// VerifyData checks chain invariant 6: every datum in Data carries a valid
// author signature.
func (b *Block) VerifyData() bool {
	for _, d := range b.Data {
		if !d.Verify() {
			return false
		}
	}
	return true
}

// Encode serializes the full block, including its signature, for storage
// and wire transmission.
func (b *Block) Encode() []byte {
	e := NewEncoder()
	e.WriteFixed(b.canonicalEncoding())
	e.WriteBytes(b.AuthorSignature)
	return e.Bytes()
}

// DecodeBlock parses a block previously produced by Encode.
func DecodeBlock(data []byte) (*Block, error) {
	d := NewDecoder(data)
	b := new(Block)

	prevHash, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	copy(b.PrevHash[:], prevHash)

	b.Height, err = d.ReadUint64()
	if err != nil {
		return nil, err
	}

	author, err := d.ReadFixed(IdentitySize)
	if err != nil {
		return nil, err
	}
	copy(b.Author[:], author)

	numAuthors, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	b.NextAuthors = make([]PeerIdentity, numAuthors)
	for i := range b.NextAuthors {
		id, err := d.ReadFixed(IdentitySize)
		if err != nil {
			return nil, err
		}
		copy(b.NextAuthors[i][:], id)
	}

	b.GameTranscript, err = d.ReadBytes()
	if err != nil {
		return nil, err
	}

	compressedData, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	rawData, err := DecompressData(compressedData)
	if err != nil {
		return nil, err
	}
	dd := NewDecoder(rawData)
	numData, err := dd.ReadUint32()
	if err != nil {
		return nil, err
	}
	b.Data = make([]PendingDatum, numData)
	for i := range b.Data {
		b.Data[i], err = decodeDatum(dd)
		if err != nil {
			return nil, err
		}
	}
	if !dd.Done() {
		return nil, ErrProtocolBadFrame
	}

	b.AuthorSignature, err = d.ReadBytes()
	if err != nil {
		return nil, err
	}

	if !d.Done() {
		return nil, ErrProtocolBadFrame
	}
	return b, nil
}

// ContainsAuthor reports whether id appears in this block's NextAuthors,
// the authorization check of chain invariant 4.
func (b *Block) ContainsAuthor(id PeerIdentity) bool {
	for _, a := range b.NextAuthors {
		if a == id {
			return true
		}
	}
	return false
}
