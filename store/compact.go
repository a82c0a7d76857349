package store

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/tildenet/highlander"
)

const segmentTempName = "blocks.dat.tmp"

// Compact rewrites the segment file to drop blocks more than retention
// heights behind the tip that were authored by someone other than own
// (spec §6's `thin` option). Genesis is always kept as the chain's
// integrity anchor. A thinned store can no longer replay full history for
// the dropped range; it remains valid for appending new blocks, since only
// the tip and its immediate lineage matter for chain invariant 2.
func (s *Store) Compact(retention uint64, own highlander.PeerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasTip {
		return nil
	}
	tipBlock, err := s.getLocked(s.tip)
	if err != nil {
		return err
	}
	tipHeight := tipBlock.Height

	type kept struct {
		height uint64
		block  *highlander.Block
	}
	var keep []kept
	for height, hash := range s.byHeight {
		block, err := s.getLocked(hash)
		if err != nil {
			return err
		}
		isOwn := block.Author == own
		isRecent := tipHeight-height <= retention
		if height == 0 || isOwn || isRecent {
			keep = append(keep, kept{height: height, block: block})
		}
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i].height < keep[j].height })

	tmpPath := filepath.Join(s.folder, segmentTempName)
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "store: open compaction temp file "+tmpPath)
	}

	newByHash := make(map[[32]byte]int64, len(keep))
	newByHeight := make(map[uint64][32]byte, len(keep))
	var offset int64
	for _, k := range keep {
		encoded := k.block.Encode()
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(encoded)))
		if _, err := tmp.Write(lenBuf); err != nil {
			tmp.Close()
			return errors.Wrap(err, "store: write compacted block length prefix")
		}
		if _, err := tmp.Write(encoded); err != nil {
			tmp.Close()
			return errors.Wrap(err, "store: write compacted block body")
		}
		hash := k.block.Hash()
		newByHash[hash] = offset
		newByHeight[k.height] = hash
		offset += 4 + int64(len(encoded))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "store: sync compaction temp file")
	}
	tmp.Close()

	segPath := filepath.Join(s.folder, segmentFileName)
	if err := s.segment.Close(); err != nil {
		return errors.Wrap(err, "store: close segment file before compaction swap")
	}
	if err := os.Rename(tmpPath, segPath); err != nil {
		return errors.Wrap(err, "store: rename compaction temp file into place")
	}

	f, err := os.OpenFile(segPath, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "store: reopen segment file after compaction")
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return errors.Wrap(err, "store: seek segment file after compaction")
	}
	s.segment = f
	s.offset = offset
	s.byHash = newByHash
	s.byHeight = newByHeight
	return nil
}
