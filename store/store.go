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

// Package store implements the append-only, hash-chained block log that
// backs a Highlander node's local chain (spec §4.3, §6).
//
// Append accepts only a block that extends the current tip. There is no
// fork choice or reorganisation: a node whose chain has diverged from its
// peers keeps its own tip and rejects theirs.
package store

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/tildenet/highlander"
)

const (
	segmentFileName = "blocks.dat"
	tipFileName     = "tip"
	tipTempName     = "tip.tmp"
)

// Options configures thin retention. OwnIdentity's own-authored blocks are
// always retained regardless of ThinRetention (spec §6: "does not persist
// non-own blocks beyond the last N").
type Options struct {
	Thin          bool
	ThinRetention uint64
	OwnIdentity   highlander.PeerIdentity
}

// Store is the on-disk block log: one append-only segment file plus an
// in-memory hash and height index rebuilt by scanning the segment at Open,
// and a tip file updated atomically after every successful append
// (spec §6's persisted layout).
type Store struct {
	mu      sync.Mutex
	folder  string
	segment *os.File
	offset  int64

	byHash   map[[32]byte]int64
	byHeight map[uint64][32]byte

	tip    [32]byte
	hasTip bool

	opts Options
}

// Open opens or creates the store at folder, scanning the segment file to
// rebuild its indices and discarding any trailing partial record left by a
// crash mid-append (spec §4.3).
func Open(folder string, opts Options) (*Store, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, errors.Wrap(err, "store: create folder "+folder)
	}

	segPath := filepath.Join(folder, segmentFileName)
	f, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "store: open segment file "+segPath)
	}

	s := &Store{
		folder:   folder,
		segment:  f,
		byHash:   make(map[[32]byte]int64),
		byHeight: make(map[uint64][32]byte),
		opts:     opts,
	}

	if err := s.scan(); err != nil {
		f.Close()
		return nil, err
	}

	if err := s.loadTip(); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// scan replays the segment file from the start, rebuilding byHash and
// byHeight, and truncates a trailing incomplete record.
func (s *Store) scan() error {
	var offset int64
	for {
		lenBuf := make([]byte, 4)
		n, err := io.ReadFull(s.segment, lenBuf)
		if err == io.EOF {
			break
		}
		if err != nil || n < 4 {
			// Partial length prefix from a crash mid-write: discard it.
			break
		}
		recordLen := binary.LittleEndian.Uint32(lenBuf)

		body := make([]byte, recordLen)
		n, err = io.ReadFull(s.segment, body)
		if err != nil || uint32(n) < recordLen {
			// Partial body: truncate the segment back to before the
			// length prefix we just read.
			break
		}

		block, err := highlander.DecodeBlock(body)
		if err != nil {
			break
		}

		hash := block.Hash()
		s.byHash[hash] = offset
		s.byHeight[block.Height] = hash
		offset += 4 + int64(recordLen)
	}

	if err := s.segment.Truncate(offset); err != nil {
		return errors.Wrap(err, "store: truncate segment file after scan")
	}
	if _, err := s.segment.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "store: seek segment file after scan")
	}
	s.offset = offset
	return nil
}

func (s *Store) loadTip() error {
	data, err := os.ReadFile(filepath.Join(s.folder, tipFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "store: read tip file")
	}
	if len(data) != 32 {
		return nil
	}
	copy(s.tip[:], data)
	s.hasTip = true
	return nil
}

// writeTip atomically replaces the tip file (write-then-rename, spec §6).
func (s *Store) writeTip(hash [32]byte) error {
	tmp := filepath.Join(s.folder, tipTempName)
	if err := os.WriteFile(tmp, hash[:], 0o644); err != nil {
		return errors.Wrap(err, "store: write tip temp file "+tmp)
	}
	if err := os.Rename(tmp, filepath.Join(s.folder, tipFileName)); err != nil {
		return errors.Wrap(err, "store: rename tip temp file into place")
	}
	return nil
}

// Append validates prev-hash linkage against the current tip and appends
// block to the segment, updating the tip atomically (chain invariant 2,
// spec §3). Appending an already-stored block is a no-op (spec §8,
// testable property 5).
func (s *Store) Append(block *highlander.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := block.Hash()
	if _, exists := s.byHash[hash]; exists {
		return nil
	}

	if block.IsGenesis() {
		if s.hasTip {
			return highlander.ErrChainBadHeight
		}
	} else {
		if !s.hasTip || block.PrevHash != s.tip {
			return highlander.ErrChainBadPrev
		}
		tipBlock, err := s.getLocked(s.tip)
		if err != nil {
			return highlander.ErrChainBadPrev
		}
		if block.Height != tipBlock.Height+1 {
			return highlander.ErrChainBadHeight
		}
	}

	encoded := block.Encode()
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(encoded)))

	if _, err := s.segment.Write(lenBuf); err != nil {
		return errors.Wrap(err, "store: write block length prefix")
	}
	if _, err := s.segment.Write(encoded); err != nil {
		return errors.Wrap(err, "store: write block body")
	}
	if err := s.segment.Sync(); err != nil {
		return errors.Wrap(err, "store: sync segment file")
	}

	s.byHash[hash] = s.offset
	s.byHeight[block.Height] = hash
	s.offset += 4 + int64(len(encoded))

	if err := s.writeTip(hash); err != nil {
		return err
	}
	s.tip = hash
	s.hasTip = true
	return nil
}

func (s *Store) getLocked(hash [32]byte) (*highlander.Block, error) {
	offset, ok := s.byHash[hash]
	if !ok {
		return nil, highlander.ErrChainBadPrev
	}
	return s.readAt(offset)
}

func (s *Store) readAt(offset int64) (*highlander.Block, error) {
	lenBuf := make([]byte, 4)
	if _, err := s.segment.ReadAt(lenBuf, offset); err != nil {
		return nil, errors.Wrapf(err, "store: read block length prefix at offset %d", offset)
	}
	recordLen := binary.LittleEndian.Uint32(lenBuf)
	body := make([]byte, recordLen)
	if _, err := s.segment.ReadAt(body, offset+4); err != nil {
		return nil, errors.Wrapf(err, "store: read block body at offset %d", offset)
	}
	return highlander.DecodeBlock(body)
}

// Get looks up a block by its content hash.
func (s *Store) Get(hash [32]byte) (*highlander.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, ok := s.byHash[hash]
	if !ok {
		return nil, nil
	}
	return s.readAt(offset)
}

// GetByHeight looks up a block by height.
func (s *Store) GetByHeight(height uint64) (*highlander.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.byHeight[height]
	if !ok {
		return nil, nil
	}
	offset := s.byHash[hash]
	return s.readAt(offset)
}

// Tip returns the current tip hash and whether one exists yet (false before
// genesis is appended).
func (s *Store) Tip() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tip, s.hasTip
}

// Height returns the tip block's height, or 0 with ok=false if the store is
// empty.
func (s *Store) Height() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasTip {
		return 0, false
	}
	tipBlock, err := s.getLocked(s.tip)
	if err != nil {
		return 0, false
	}
	return tipBlock.Height, true
}

// IterFrom calls fn for every stored block from height onward, in
// ascending height order, stopping early if fn returns false.
func (s *Store) IterFrom(height uint64, fn func(*highlander.Block) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, hasTip := height, s.hasTip
	if !hasTip {
		return nil
	}
	tipBlock, err := s.getLocked(s.tip)
	if err != nil {
		return err
	}

	for h <= tipBlock.Height {
		hash, ok := s.byHeight[h]
		if !ok {
			h++
			continue
		}
		block, err := s.getLocked(hash)
		if err != nil {
			return err
		}
		if !fn(block) {
			return nil
		}
		h++
	}
	return nil
}

// Close releases the segment file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segment.Close()
}

// Wipe removes the store's on-disk contents, for Config.ForceRestart.
func Wipe(folder string) error {
	if err := os.RemoveAll(filepath.Join(folder, segmentFileName)); err != nil {
		return errors.Wrap(err, "store: remove segment file")
	}
	if err := os.RemoveAll(filepath.Join(folder, tipFileName)); err != nil {
		return errors.Wrap(err, "store: remove tip file")
	}
	return nil
}
