package eligibility

import (
	"regexp"
	"strings"
)

// wildcardMatch reports whether subject matches a glob-style pattern where
// `*` matches any run of characters, case-insensitively, anchored both ends.
func wildcardMatch(pattern, subject string) bool {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, `.*`)
	re, err := regexp.Compile(`(?i)^` + quoted + `$`)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}
