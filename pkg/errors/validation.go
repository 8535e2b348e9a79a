package errors

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// boxNameRegex matches box names: a letter followed by letters, digits,
// dashes, underscores or dots.
var boxNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*$`)

// ValidateBoxName validates a box name from a scene file.
// Names are used as log fields, graph labels and lookup keys, so they are
// kept to a conservative character set.
func ValidateBoxName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidBox, "box name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidBox, "box name too long (max 128 characters)")
	}
	if !boxNameRegex.MatchString(name) {
		return New(ErrCodeInvalidBox, "invalid box name: %q", name)
	}
	return nil
}

// maxPathLength bounds source paths in scene files.
const maxPathLength = 500

// pathRules are checked in order; the first failing rule names the error.
var pathRules = []struct {
	bad func(string) bool
	msg string
}{
	{func(p string) bool { return p == "" }, "path cannot be empty"},
	{func(p string) bool { return len(p) > maxPathLength }, "path too long"},
	{func(p string) bool { return strings.IndexFunc(p, unicode.IsControl) >= 0 }, "path contains control characters"},
	{func(p string) bool { return strings.HasPrefix(p, "/") }, "path must be relative"},
	{func(p string) bool { return strings.Contains(p, `\`) }, "path cannot contain backslashes"},
	{func(p string) bool { return slices.Contains(strings.Split(p, "/"), "..") }, "path escapes the scene directory"},
}

// ValidatePath validates an image source path referenced by a scene.
// Sources are slash-separated, relative to the scene's directory, and may
// not leave it.
func ValidatePath(path string) error {
	for _, r := range pathRules {
		if r.bad(path) {
			return New(ErrCodeInvalidPath, "%s: %q", r.msg, truncate(path, 40))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ValidateFrameRange checks that start <= end and both are non-negative.
func ValidateFrameRange(start, end int) error {
	if start < 0 || end < 0 {
		return New(ErrCodeInvalidFrame, "frames must be non-negative (got %d..%d)", start, end)
	}
	if end < start {
		return New(ErrCodeInvalidFrame, "frame range end %d before start %d", end, start)
	}
	return nil
}

// ValidateFrame checks that frame lies in [start, end].
func ValidateFrame(frame, start, end int) error {
	if frame < start || frame > end {
		return &FrameRangeError{Frame: frame, Start: start, End: end}
	}
	return nil
}

// ValidateResolution checks a render resolution multiplier.
func ValidateResolution(res float64) error {
	if math.IsNaN(res) || math.IsInf(res, 0) || res <= 0 {
		return New(ErrCodeInvalidInput, "resolution must be positive (got %v)", res)
	}
	if res > 16 {
		return New(ErrCodeInvalidInput, "resolution too large (max 16, got %v)", res)
	}
	return nil
}

// ValidateURI validates a backend connection string against the allowed
// schemes, e.g. "redis://" or "mongodb://".
func ValidateURI(raw string, schemes ...string) error {
	if raw == "" {
		return New(ErrCodeInvalidInput, "URI cannot be empty")
	}
	for _, s := range schemes {
		if strings.HasPrefix(raw, s) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URI must use one of: %s", strings.Join(schemes, ", "))
}
