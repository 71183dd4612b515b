package tracking

import (
	"regexp"
	"strings"
)

// Classifier - whole-word matcher over a fixed completion vocabulary.
// "done" matches, "alldone123" does not.
type Classifier struct {
	re *regexp.Regexp
}

// NewClassifier - compile the vocabulary once. A nil or empty
// vocabulary matches nothing.
func NewClassifier(words []string) *Classifier {
	quoted := make([]string, 0, len(words))

	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}

		quoted = append(quoted, regexp.QuoteMeta(w))
	}

	if len(quoted) == 0 {
		return &Classifier{}
	}

	return &Classifier{
		re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// Match - true when text or caption contains any vocabulary word on
// whole-word boundaries, case-insensitively.
func (c *Classifier) Match(text, caption string) bool {
	if c.re == nil {
		return false
	}

	combined := strings.TrimSpace(text + " " + caption)
	if combined == "" {
		return false
	}

	return c.re.MatchString(combined)
}
