package tournament

import "github.com/tildenet/highlander"

// MatchResult records the outcome of one bracket match: two contenders (a
// contender may be a bye, or itself the winner of a lower match) and the
// winner. The throws that decided it are not stored.
type MatchResult struct {
	Level  int
	Index  int
	Left   highlander.PeerIdentity
	Right  highlander.PeerIdentity
	// LeftBye/RightBye mark a contender slot that was never seated
	// (bracket padding), not a real player who lost upstream.
	LeftBye  bool
	RightBye bool
	Winner   highlander.PeerIdentity
}

// resolveMatch decides one match given each side's throw at this level
// (spec §4.7: "Rock beats Scissors, Scissors beats Paper, Paper beats
// Rock... on a tie, resolved in favor of the lexicographically smaller
// pubkey"). A bye side always loses.
func resolveMatch(level, index int, left, right highlander.PeerIdentity, leftBye, rightBye bool, leftThrow, rightThrow highlander.Throw) MatchResult {
	r := MatchResult{Level: level, Index: index, Left: left, Right: right, LeftBye: leftBye, RightBye: rightBye}

	switch {
	case leftBye && rightBye:
		// Both slots empty: BuildBracket seats every bye at the end, so
		// two byes meet whenever padding adds more than one (e.g. five
		// participants in eight seats). Walk carries this winner up as
		// a bye.
		r.Winner = left
	case leftBye:
		r.Winner = right
	case rightBye:
		r.Winner = left
	case leftThrow.Beats(rightThrow):
		r.Winner = left
	case rightThrow.Beats(leftThrow):
		r.Winner = right
	case left == right:
		r.Winner = left
	default:
		if left.Less(right) {
			r.Winner = left
		} else {
			r.Winner = right
		}
	}
	return r
}
