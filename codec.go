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
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
)

// MaxFrameSize is the maximum decompressed payload size accepted from the
// wire (spec §4.2).
const MaxFrameSize = 16 << 20

// LengthPrefixSize is the size in bytes of a frame's length prefix.
const LengthPrefixSize = 4

// Encoder builds a canonical, schema-driven binary encoding: fixed
// little-endian integers and length-prefixed byte sequences. Generalized
// from the teacher's manual field-by-field encoding in message.go's
// SignedProto.Hash (explicit binary.Write calls building a hash preimage).
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteByte appends a single byte.
func (e *Encoder) WriteByte(b byte) { e.buf = append(e.buf, b) }

// WriteUint32 appends a little-endian uint32.
func (e *Encoder) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// WriteUint64 appends a little-endian uint64.
func (e *Encoder) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

// WriteFixed appends raw bytes with no length prefix (for fixed-size
// fields such as hashes and identities, whose length is implied by type).
func (e *Encoder) WriteFixed(b []byte) { e.buf = append(e.buf, b...) }

// WriteBytes appends a uint32 length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Decoder reads back an Encoder's output. All reads fail closed with
// ErrProtocolBadFrame on truncation, per spec §4.1's "no silent fallback."
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps b for sequential reads.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Done reports whether the entire buffer has been consumed.
func (d *Decoder) Done() bool { return d.off == len(d.buf) }

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.Remaining() < 1 {
		return 0, ErrProtocolBadFrame
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

// ReadUint32 reads a little-endian uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.Remaining() < 4 {
		return 0, ErrProtocolBadFrame
	}
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	if d.Remaining() < 8 {
		return 0, ErrProtocolBadFrame
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

// ReadFixed reads exactly n raw bytes.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrProtocolBadFrame
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n
	return out, nil
}

// ReadBytes reads a uint32-length-prefixed byte sequence.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	if uint32(d.Remaining()) < n {
		return nil, ErrProtocolBadFrame
	}
	return d.ReadFixed(int(n))
}

var zstdEncoder, _ = zstd.NewWriter(nil)
var zstdDecoder, _ = zstd.NewReader(nil)

// CompressData compresses b with Zstd, as spec §4.2 requires for a block's
// data field before it is encoded into the block.
func CompressData(b []byte) []byte {
	return zstdEncoder.EncodeAll(b, nil)
}

// DecompressData reverses CompressData, rejecting output over MaxFrameSize
// with ErrFrameTooLarge.
func DecompressData(b []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, ErrProtocolBadFrame
	}
	if len(out) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

// SealFrame encrypts payload under key and prepends the wire length
// prefix, producing bytes ready to write to a connection (spec §4.2:
// "u32 length prefix + ciphertext").
func SealFrame(key [32]byte, payload []byte) ([]byte, error) {
	ciphertext, err := EncryptFrame(key, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, LengthPrefixSize+len(ciphertext))
	binary.LittleEndian.PutUint32(out, uint32(len(ciphertext)))
	copy(out[LengthPrefixSize:], ciphertext)
	return out, nil
}

// OpenFrame decrypts a ciphertext previously produced by SealFrame's
// encryption step (the caller has already stripped the length prefix and
// read exactly that many bytes off the wire).
func OpenFrame(key [32]byte, ciphertext []byte) ([]byte, error) {
	payload, err := DecryptFrame(key, ciphertext)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return payload, nil
}
