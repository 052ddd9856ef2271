package message

import "strings"

// Ellipsis marks truncated text.
const Ellipsis = "[...]"

// Truncate shortens s to about approxChars characters. Text is only cut when
// it exceeds the limit by more than the ellipsis length; the cut moves back
// to just after the last space or newline if there is one. approxChars <= 0
// disables truncation.
func Truncate(s string, approxChars int) string {
	if approxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= approxChars+len(Ellipsis) {
		return s
	}
	head := string(runes[:approxChars])
	if i := strings.LastIndexAny(head, " \n"); i >= 0 {
		head = head[:i+1]
	}
	return head + Ellipsis
}
