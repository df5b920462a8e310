package captions

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTrack is returned by Parse for text that is not a valid SRT track.
var ErrMalformedTrack = errors.New("captions: malformed caption track")

// FormatTimestamp renders d as HH:MM:SS,mmm. Sub-millisecond precision is truncated.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	secs := (ms / 1000) % 60
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	clock, frac, ok := strings.Cut(s, ",")
	if !ok {
		return 0, fmt.Errorf("%w: timestamp %q has no millisecond part", ErrMalformedTrack, s)
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 || len(frac) != 3 {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformedTrack, s)
	}

	var fields [4]int64
	for i, p := range append(parts, frac) {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: timestamp %q", ErrMalformedTrack, s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: timestamp %q out of range", ErrMalformedTrack, s)
	}

	total := fields[0]*3_600_000 + fields[1]*60_000 + fields[2]*1000 + fields[3]
	return time.Duration(total) * time.Millisecond, nil
}

// Render serializes cues as an SRT caption track.
func Render(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
	}
	return b.String()
}

// Parse reads an SRT caption track, typically one a user edited by hand.
// Cues are renumbered from 1 in the order they appear; multi-line text is
// joined with a single space. Each cue must satisfy Start < End and cues
// must not overlap.
func Parse(track string) ([]Cue, error) {
	scanner := bufio.NewScanner(strings.NewReader(strings.ReplaceAll(track, "\r\n", "\n")))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues  []Cue
		block []string
		line  int
	)

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		defer func() { block = block[:0] }()

		// The numeric index line is optional for hand-edited tracks.
		timing := block[0]
		text := block[1:]
		if !strings.Contains(timing, "-->") {
			if len(block) < 2 {
				return fmt.Errorf("%w: cue ending at line %d has no timing", ErrMalformedTrack, line)
			}
			timing, text = block[1], block[2:]
		}

		from, to, ok := strings.Cut(timing, "-->")
		if !ok {
			return fmt.Errorf("%w: bad timing line %q", ErrMalformedTrack, timing)
		}
		start, err := ParseTimestamp(from)
		if err != nil {
			return err
		}
		toFields := strings.Fields(to)
		if len(toFields) == 0 {
			return fmt.Errorf("%w: bad timing line %q", ErrMalformedTrack, timing)
		}
		end, err := ParseTimestamp(toFields[0])
		if err != nil {
			return err
		}
		if end <= start {
			return fmt.Errorf("%w: cue %d ends before it starts", ErrMalformedTrack, len(cues)+1)
		}
		if n := len(cues); n > 0 && start < cues[n-1].End {
			return fmt.Errorf("%w: cue %d overlaps the previous cue", ErrMalformedTrack, n+1)
		}

		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  strings.Join(text, " "),
		})
		return nil
	}

	for scanner.Scan() {
		line++
		l := strings.TrimSpace(scanner.Text())
		if l == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read caption track: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: no cues", ErrMalformedTrack)
	}
	return cues, nil
}
