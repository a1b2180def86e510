package review

import (
	"fmt"
	"strings"
)

const (
	// MaxDiffBytes is the upper bound above which a diff is not analyzed at
	// all; the file gets a fixed placeholder verdict instead of a model call.
	MaxDiffBytes = 50000

	// TruncateDiffBytes bounds the diff text submitted to the model.
	// Truncated output, marker included, never exceeds this size.
	TruncateDiffBytes = 12000

	// TooLargePlaceholder is the verdict body for files whose diff exceeds
	// MaxDiffBytes.
	TooLargePlaceholder = "This file's diff is too large for automated review. Please review it manually."
)

const truncationMarkerFmt = "\n[diff truncated; %d changed lines in full diff]"

// ShapeDiff converts a file's raw diff into size-bounded review-request text.
// When ok is false the diff exceeded MaxDiffBytes; the caller must use
// TooLargePlaceholder as the verdict and skip the model call. Otherwise the
// returned text is the (possibly truncated) diff inside a ```diff fence.
func ShapeDiff(patch string) (text string, ok bool) {
	if len(patch) > MaxDiffBytes {
		return "", false
	}
	return "```diff\n" + TruncateDiff(patch) + "\n```", true
}

// TruncateDiff cuts diff text down to TruncateDiffBytes. The cut happens at a
// line boundary, never mid-line, and a marker records how many changed lines
// the full diff contained. The marker is budgeted into the limit, so applying
// TruncateDiff to its own output is a no-op.
func TruncateDiff(patch string) string {
	if len(patch) <= TruncateDiffBytes {
		return patch
	}

	marker := fmt.Sprintf(truncationMarkerFmt, countChangedLines(patch))
	budget := TruncateDiffBytes - len(marker)

	cut := patch[:budget]
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		cut = cut[:i]
	}
	return cut + marker
}

// countChangedLines counts added and removed lines in a unified diff.
func countChangedLines(patch string) int {
	n := 0
	for _, line := range strings.Split(patch, "\n") {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			n++
		}
	}
	return n
}
