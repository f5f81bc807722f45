package handlers

import (
	"regexp"
	"strings"
)

// The provider re-sends the same fragment with only a trailing elapsed
// annotation changing, e.g. "X (3s elapsed)" then "X (7s elapsed)".
var elapsedSuffix = regexp.MustCompile(` \(\d+s elapsed\)$`)

// Pure status fragments carry no content; clients render their own
// loading states.
var statusLiterals = map[string]struct{}{
	"Thinking...":         {},
	"Generating image...": {},
}

// StreamDeduper filters the upstream partial-event feed down to the
// sequence of actual content changes. One instance per in-flight stream;
// not safe for concurrent use and not meant for it.
type StreamDeduper struct {
	total   strings.Builder
	last    string
	emitted bool
	count   int
}

func NewStreamDeduper() *StreamDeduper {
	return &StreamDeduper{}
}

// Push normalizes one upstream fragment and reports whether it should be
// emitted. Status-only fragments and repeats of the previously emitted
// fragment are dropped; everything else grows the accumulated total.
func (d *StreamDeduper) Push(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	fragment := elapsedSuffix.ReplaceAllString(text, "")
	if _, isStatus := statusLiterals[strings.TrimSpace(fragment)]; isStatus {
		return "", false
	}
	if d.emitted && fragment == d.last {
		return "", false
	}
	d.total.WriteString(fragment)
	d.last = fragment
	d.emitted = true
	d.count++
	return fragment, true
}

// Total returns the accumulated content so far.
func (d *StreamDeduper) Total() string {
	return d.total.String()
}

// Emitted returns how many deltas have been emitted.
func (d *StreamDeduper) Emitted() int {
	return d.count
}
