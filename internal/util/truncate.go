package util

import "fmt"

// DefaultLogMaxLen caps completion text quoted in log lines. Responses can
// run to many kilobytes; logs only need the head.
const DefaultLogMaxLen = 200

// TruncateLog shortens long strings for log output, annotating the
// original size.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
