// Package analysis turns raw PRs, meeting minutes and team reviews into
// structured insights, and merges PR and meeting insights into the manager
// report. Everything here is pure: no I/O, no clocks.
package analysis

import (
	"regexp"
	"strings"
)

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func runeLen(s string) int { return len([]rune(s)) }

// captureAll collects group 1 of every pattern match, trimmed and limited to
// maxLen runes, keeping entries longer than minLen runes.
func captureAll(text string, patterns []*regexp.Regexp, maxLen, minLen int) []string {
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			item := strings.TrimSpace(m[1])
			if maxLen > 0 {
				item = truncate(item, maxLen)
			}
			if item != "" && runeLen(item) > minLen {
				out = append(out, item)
			}
		}
	}
	return out
}

func first[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func truncateEach(items []string, n int) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = truncate(s, n)
	}
	return out
}

// nonEmptyLines returns the trimmed, non-blank lines of s.
func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
