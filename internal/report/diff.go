package report

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// unifiedExcerptDiff produces a classic unified patch (---/+++ headers,
// @@ hunks) between the previous and current stored excerpts, bounded
// at maxLines.
func unifiedExcerptDiff(previous, current string, contextLines, maxLines int) string {
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(previous),
		B:        splitLinesKeepNL(current),
		FromFile: "previous",
		ToFile:   "current",
		Context:  contextLines,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = append(lines[:maxLines], "... (diff truncated)\n")
	}
	return strings.Join(lines, "")
}

// splitLinesKeepNL splits into newline-terminated lines. The final line
// is terminated too, so single-line excerpts still diff line by line.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if last := lines[len(lines)-1]; last == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] = last + "\n"
	}
	return lines
}
