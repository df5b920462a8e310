// Package captions derives caption cues from a narration script and the
// measured length of its audio, and reads and writes them as SRT.
package captions

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChunkSize is the number of script words shown per cue.
const ChunkSize = 3

var (
	// ErrInvalidDuration is returned when the audio duration is not positive.
	ErrInvalidDuration = errors.New("captions: audio duration must be positive")
	// ErrDurationTooShort is returned when the audio is shorter than one
	// millisecond per cue.
	ErrDurationTooShort = errors.New("captions: audio too short for the script")
	// ErrTrackMismatch is returned by Validate for a track that does not fit
	// its script or audio.
	ErrTrackMismatch = errors.New("captions: track does not match the narration")
)

// Cue is one timed caption entry.
type Cue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Synthesize splits text into whitespace-separated words and spreads them
// evenly across audioDuration, ChunkSize words per cue.
//
// Boundaries are computed per word index in whole milliseconds, so each cue
// starts exactly where the previous one ended and the last cue ends at
// audioDuration truncated to the millisecond. With at least one millisecond
// per cue every cue has Start < End; shorter audio fails with
// ErrDurationTooShort. A script with no words yields no cues.
func Synthesize(text string, audioDuration time.Duration) ([]Cue, error) {
	if audioDuration <= 0 {
		return nil, ErrInvalidDuration
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []Cue{}, nil
	}

	totalMs := audioDuration.Milliseconds()
	wordCount := int64(len(words))
	cueCount := (len(words) + ChunkSize - 1) / ChunkSize
	// A full chunk then spans 3*totalMs/wordCount >= 1ms.
	if totalMs < int64(cueCount) {
		return nil, fmt.Errorf("%w: %d cues in %v", ErrDurationTooShort, cueCount, audioDuration)
	}
	boundary := func(i int) time.Duration {
		ms := int64(i) * totalMs / wordCount
		if ms > totalMs {
			ms = totalMs
		}
		return time.Duration(ms) * time.Millisecond
	}

	cues := make([]Cue, 0, cueCount)
	start := boundary(0)
	for i := 0; i < len(words); i += ChunkSize {
		j := i + ChunkSize
		if j > len(words) {
			j = len(words)
		}
		end := boundary(j)
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  strings.Join(words[i:j], " "),
		})
		start = end
	}
	return cues, nil
}

// Validate checks a hand-edited track against the narration it will be
// burned over: its words must be the script's words in order, ignoring
// case, and the last cue must end within audioDuration.
func Validate(cues []Cue, script string, audioDuration time.Duration) error {
	want := strings.Fields(script)
	var got []string
	for _, c := range cues {
		got = append(got, strings.Fields(c.Text)...)
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: track has %d words, script has %d", ErrTrackMismatch, len(got), len(want))
	}
	for i := range want {
		if !strings.EqualFold(got[i], want[i]) {
			return fmt.Errorf("%w: word %d is %q, script has %q", ErrTrackMismatch, i+1, got[i], want[i])
		}
	}
	if n := len(cues); n > 0 && cues[n-1].End > audioDuration {
		return fmt.Errorf("%w: last cue ends at %s, audio is %s",
			ErrTrackMismatch, FormatTimestamp(cues[n-1].End), FormatTimestamp(audioDuration))
	}
	return nil
}
