package ffmpeg

import (
	"strconv"
	"strings"
)

// Stats is one periodic status line ffmpeg prints on stderr, e.g.
//
//	frame=  120 fps= 48 q=2.0 size=N/A time=00:00:04.00 bitrate=N/A speed=1.6x
type Stats struct {
	Frame int64
	FPS   float64
	Time  string
	Speed string
	// Final is set on the summary line ffmpeg prints at exit (Lsize= instead of size=).
	Final bool
}

// ParseStatsLine parses a stderr status line. Lines that are not status
// lines report ok=false.
func ParseStatsLine(line string) (Stats, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "frame=") {
		return Stats{}, false
	}

	var s Stats
	for key, value := range statsFields(line) {
		switch key {
		case "frame":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Stats{}, false
			}
			s.Frame = n
		case "fps":
			s.FPS, _ = strconv.ParseFloat(value, 64)
		case "time":
			s.Time = value
		case "speed":
			s.Speed = value
		case "Lsize":
			s.Final = true
		}
	}
	return s, true
}

// statsFields splits "k=v k2= v2" pairs.
func statsFields(line string) map[string]string {
	fields := map[string]string{}
	tokens := strings.Fields(line)
	for len(tokens) > 0 {
		tok := tokens[0]
		tokens = tokens[1:]
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		// ffmpeg pads values ("fps=  48"), so the value may be the next token.
		if value == "" && len(tokens) > 0 && !strings.Contains(tokens[0], "=") {
			value, tokens = tokens[0], tokens[1:]
		}
		fields[key] = value
	}
	return fields
}

// StatsTracker keeps the most recent status line seen.
type StatsTracker struct {
	last Stats
	seen bool
}

// Observe feeds a stderr line and reports whether it was a status line.
func (t *StatsTracker) Observe(line string) (Stats, bool) {
	s, ok := ParseStatsLine(line)
	if ok {
		t.last = s
		t.seen = true
	}
	return s, ok
}

// Last returns the most recent status, if any.
func (t *StatsTracker) Last() (Stats, bool) {
	return t.last, t.seen
}
