package markup

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	openingTag = regexp.MustCompile(`<([^<>/][^<>]*)>`)
	closingTag = regexp.MustCompile(`</([^<>]*)>`)
)

// tag is a located `<header>` or `</header>`. start is the offset of '<',
// end is the offset just past '>'.
type tag struct {
	header     string
	start, end int
}

// findOpeningTag returns the first opening tag at or after pos.
func findOpeningTag(text string, pos int) (tag, bool) {
	if pos >= len(text) {
		return tag{}, false
	}
	m := openingTag.FindStringSubmatchIndex(text[pos:])
	if m == nil {
		return tag{}, false
	}
	return tag{header: text[pos+m[2] : pos+m[3]], start: pos + m[0], end: pos + m[1]}, true
}

// maxMinutes keeps minutes*60 within int.
const maxMinutes = math.MaxInt / 60

// header is a parsed tag header: NAME[':' WS* DIGITS] WS*.
type header struct {
	topic   string
	minutes int
	timed   bool
}

// parseHeader rejects empty names, a colon without digits, minutes too large
// to express in seconds, and any junk after the digits.
func parseHeader(raw string) (header, bool) {
	name, rest, timed := strings.Cut(raw, ":")
	topic := strings.TrimSpace(name)
	if topic == "" {
		return header{}, false
	}
	if !timed {
		return header{topic: topic}, true
	}

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 || strings.TrimSpace(rest[digits:]) != "" {
		return header{}, false
	}
	minutes, err := strconv.Atoi(rest[:digits])
	if err != nil || minutes > maxMinutes {
		return header{}, false
	}
	return header{topic: topic, minutes: minutes, timed: true}, true
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

// findClosingTag returns the first `</header>` at or after pos whose topic
// matches. A timed quiz only closes on a header without minutes; candidates
// that fail to match are skipped.
func findClosingTag(text string, pos int, topic string, timed bool) (tag, bool) {
	want := normalizeTopic(topic)
	for pos < len(text) {
		m := closingTag.FindStringSubmatchIndex(text[pos:])
		if m == nil {
			return tag{}, false
		}
		candidate := tag{header: text[pos+m[2] : pos+m[3]], start: pos + m[0], end: pos + m[1]}
		pos = candidate.end

		h, ok := parseHeader(candidate.header)
		if !ok || normalizeTopic(h.topic) != want {
			continue
		}
		if timed && h.timed {
			continue
		}
		return candidate, true
	}
	return tag{}, false
}
