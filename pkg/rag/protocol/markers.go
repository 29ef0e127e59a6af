package protocol

import (
	"regexp"
	"strings"
)

const (
	SearchMarker   = "SEARCH_ACTION"
	ConcludeMarker = "MISSION_COMPLETE"
)

// Priority picks the honored marker when a generation carries both.
type Priority string

const (
	ConcludeFirst Priority = "conclude"
	SearchFirst   Priority = "search"
)

// ParsePriority falls back to ConcludeFirst for unknown values.
func ParsePriority(s string) Priority {
	if strings.EqualFold(strings.TrimSpace(s), string(SearchFirst)) {
		return SearchFirst
	}
	return ConcludeFirst
}

// Kind is the tagged shape of one generation.
type Kind int

const (
	KindPlain Kind = iota
	KindSearch
	KindConclude
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindConclude:
		return "conclude"
	default:
		return "plain"
	}
}

// Outcome is a generation after marker extraction. Visible never contains a marker.
type Outcome struct {
	Kind    Kind
	Query   string
	Visible string
}

var (
	searchPattern   = regexp.MustCompile(`(?i)search_action`)
	concludePattern = regexp.MustCompile(`(?i)mission_complete`)
	anyMarker       = regexp.MustCompile(`(?i)search_action|mission_complete`)
)

// markup trimmed around an extracted query
const markup = "*[]:\"'`_#>- \t"

// Classify turns free generated text into a tagged Outcome. Query is empty when the
// marker carried no usable text; callers supply their own fallback in that case.
func Classify(text string, priority Priority) Outcome {
	hasSearch := searchPattern.MatchString(text)
	hasConclude := concludePattern.MatchString(text)

	out := Outcome{Kind: KindPlain, Visible: Strip(text)}
	switch {
	case hasSearch && hasConclude:
		if priority == SearchFirst {
			out.Kind = KindSearch
		} else {
			out.Kind = KindConclude
		}
	case hasSearch:
		out.Kind = KindSearch
	case hasConclude:
		out.Kind = KindConclude
	}

	if out.Kind == KindSearch {
		out.Query = ExtractQuery(text)
	}
	return out
}

// ExtractQuery reads the search query following the first search marker. When the
// rest of the line is empty it tries the text before the marker on the same line,
// then the closest non-empty line above it.
func ExtractQuery(text string) string {
	loc := searchPattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}

	after := text[loc[1]:]
	if i := strings.IndexByte(after, '\n'); i >= 0 {
		after = after[:i]
	}
	if q := cleanQuery(after); q != "" {
		return q
	}

	lineStart := strings.LastIndexByte(text[:loc[0]], '\n') + 1
	if q := cleanQuery(text[lineStart:loc[0]]); q != "" {
		return q
	}

	above := strings.Split(text[:lineStart], "\n")
	for i := len(above) - 1; i >= 0; i-- {
		if anyMarker.MatchString(above[i]) {
			continue
		}
		if q := cleanQuery(above[i]); q != "" {
			return q
		}
	}
	return ""
}

func cleanQuery(s string) string {
	s = anyMarker.ReplaceAllString(s, "")
	s = strings.NewReplacer("**", "", "[", "", "]", "").Replace(s)
	return strings.Join(strings.Fields(strings.Trim(s, markup)), " ")
}

// Strip cuts every line that mentions a marker at its first marker, keeping the prose
// before it. Lines left with nothing but markup are dropped.
func Strip(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if loc := anyMarker.FindStringIndex(line); loc != nil {
			line = strings.TrimRight(line[:loc[0]], markup)
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ContainsMarker reports whether text still mentions a marker in any casing.
func ContainsMarker(text string) bool {
	return anyMarker.MatchString(text)
}
