package tournament

import "errors"

// ErrIncompleteThrows is returned when a bracket walk is attempted before
// every seated participant's throw vector reaches the required level.
var ErrIncompleteThrows = errors.New("tournament: missing throw for bracket level")

// ErrTranscriptBadCommitment is returned when a transcript's embedded
// throw commitment fails signature verification or targets the wrong
// round seed.
var ErrTranscriptBadCommitment = errors.New("tournament: transcript commitment invalid")

// ErrTranscriptWinnerMismatch is returned when a replayed tournament's
// computed winner does not match the author the transcript was meant to
// justify.
var ErrTranscriptWinnerMismatch = errors.New("tournament: replayed winner does not match claimed author")
