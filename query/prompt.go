package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragline/core"
)

// contextSeparator goes between the texts of consecutive hits.
const contextSeparator = "\n\n"

// AssembleContext joins hit texts in rank order, keeping the result within
// limit characters. Hits that would overflow the limit are dropped whole;
// only a first hit that alone exceeds the limit is cut. It returns the
// context and the number of hits it draws on.
func AssembleContext(hits []core.Hit, limit int) (string, int) {
	var b strings.Builder
	size := 0
	used := 0
	for i, hit := range hits {
		n := utf8.RuneCountInString(hit.Text)
		sep := 0
		if i > 0 {
			sep = utf8.RuneCountInString(contextSeparator)
		}

		if size+sep+n > limit {
			if i == 0 {
				b.WriteString(truncate(hit.Text, limit))
				used = 1
			}
			break
		}

		if i > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(hit.Text)
		size += sep + n
		used++
	}
	return b.String(), used
}

// BuildPrompt renders the generation prompt for a question and its context.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\nAnswer concisely:", context, question)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
