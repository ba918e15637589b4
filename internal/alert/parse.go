package alert

import (
	"strconv"
	"strings"
)

// readInt reads the leading integer of a reported value: "-16" and "-16.5"
// both give -16, "4-5" gives 4. Text without a leading number is absent.
func readInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
