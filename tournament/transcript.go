package tournament

import "github.com/tildenet/highlander"

// Transcript is the proof of tournament victory embedded in a block's
// opaque GameTranscript field (spec §3, §4.7): every seated participant's
// signed throw commitment for this round's seed. A validator rebuilds the
// bracket from Seed and the commitments' authors and replays every match.
type Transcript struct {
	Seed        [32]byte
	Commitments []*highlander.ThrowsMsg
}

// Encode serializes the transcript for embedding in Block.GameTranscript.
func (t *Transcript) Encode() []byte {
	e := highlander.NewEncoder()
	e.WriteFixed(t.Seed[:])
	e.WriteUint32(uint32(len(t.Commitments)))
	for _, c := range t.Commitments {
		e.WriteBytes(highlander.EncodeThrows(c))
	}
	return e.Bytes()
}

// DecodeTranscript parses a transcript previously produced by Encode.
func DecodeTranscript(data []byte) (*Transcript, error) {
	d := highlander.NewDecoder(data)
	t := new(Transcript)

	seed, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	copy(t.Seed[:], seed)

	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	t.Commitments = make([]*highlander.ThrowsMsg, n)
	for i := range t.Commitments {
		raw, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		// raw carries the leading message tag byte written by
		// EncodeThrows; Decode expects payload without it.
		msg, err := highlander.DecodeThrows(raw[1:])
		if err != nil {
			return nil, err
		}
		t.Commitments[i] = msg
	}
	if !d.Done() {
		return nil, highlander.ErrProtocolBadFrame
	}
	return t, nil
}

// Replay rebuilds the bracket from the transcript's commitments and
// confirms the computed winner matches claimedAuthor (chain invariant 5,
// spec §3). Every commitment's signature and round seed are checked first.
func (t *Transcript) Replay(claimedAuthor highlander.PeerIdentity) error {
	participants := make([]highlander.PeerIdentity, 0, len(t.Commitments))
	throws := make(map[highlander.PeerIdentity]highlander.ThrowVector, len(t.Commitments))

	for _, c := range t.Commitments {
		if c.RoundSeed != t.Seed || !c.Verify() {
			return ErrTranscriptBadCommitment
		}
		participants = append(participants, c.Author)
		throws[c.Author] = c.Throws
	}

	bracket := BuildBracket(t.Seed, participants)
	if bracket == nil {
		return ErrTranscriptBadCommitment
	}

	winner, _, err := Walk(bracket, throws)
	if err != nil {
		return err
	}
	if winner != claimedAuthor {
		return ErrTranscriptWinnerMismatch
	}
	return nil
}

// BuildTranscript assembles a Transcript from the commitments collected
// during a round's gathering window, ready to sign into a block.
func BuildTranscript(seed [32]byte, commitments []*highlander.ThrowsMsg) *Transcript {
	return &Transcript{Seed: seed, Commitments: commitments}
}
