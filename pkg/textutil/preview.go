package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

var blockBreaks = strings.NewReplacer("</p>", " ", "<br>", " ", "<br/>", " ", "</div>", " ")

// StripHTML removes all markup, unescapes entities and collapses runs of
// whitespace.
func StripHTML(s string) string {
	s = blockBreaks.Replace(s)
	cleaned := html.UnescapeString(strictPolicy().Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Truncate cuts s to at most max runes, appending "..." when it had to cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Preview is StripHTML followed by Truncate.
func Preview(s string, max int) string {
	return Truncate(StripHTML(s), max)
}
