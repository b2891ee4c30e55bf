package requests

import (
	"fmt"
	"regexp"
	"strconv"
)

var codeSequence = regexp.MustCompile(`-(\d+)$`)

// ParseSequence extracts the trailing numeric suffix of a request code.
func ParseSequence(code string) (int64, bool) {
	m := codeSequence.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatCode renders "<prefix>-<seq>" with the sequence zero-padded to three digits.
func FormatCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// NextCode derives the code following latest. When latest is empty or does
// not end in a number, count (requests of the type so far) is used instead.
func NextCode(prefix, latest string, count int64) string {
	if seq, ok := ParseSequence(latest); ok {
		return FormatCode(prefix, seq+1)
	}
	return FormatCode(prefix, count+1)
}
