package interact

import (
	"fmt"
	"regexp"
	"strings"
)

// URLPattern matches a page URL exactly, by glob, or by regular expression.
//
// Globs follow browser-automation conventions: "*" matches within a path
// segment and "**" matches across segments. Every other character is literal.
type URLPattern struct {
	raw string
	re  *regexp.Regexp // nil for exact patterns
}

// ExactURL matches only the identical URL string.
func ExactURL(url string) URLPattern {
	return URLPattern{raw: url}
}

// GlobURL matches URLs against a glob.
func GlobURL(glob string) URLPattern {
	return URLPattern{raw: glob, re: regexp.MustCompile(globToRegexp(glob))}
}

// RegexpURL matches URLs containing a match of expr.
func RegexpURL(expr string) (URLPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return URLPattern{}, fmt.Errorf("invalid URL regexp %q: %w", expr, err)
	}
	return URLPattern{raw: "re:" + expr, re: re}, nil
}

// ParseURLPattern interprets s as a regexp when prefixed with "re:", as a glob
// when it contains "*", and as an exact URL otherwise.
func ParseURLPattern(s string) (URLPattern, error) {
	switch {
	case strings.HasPrefix(s, "re:"):
		return RegexpURL(strings.TrimPrefix(s, "re:"))
	case strings.Contains(s, "*"):
		return GlobURL(s), nil
	case s == "":
		return URLPattern{}, fmt.Errorf("empty URL pattern")
	default:
		return ExactURL(s), nil
	}
}

// Match reports whether url satisfies the pattern.
func (p URLPattern) Match(url string) bool {
	if p.re == nil {
		return url == p.raw
	}
	return p.re.MatchString(url)
}

func (p URLPattern) String() string {
	return p.raw
}

func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		if glob[i] != '*' {
			j := i
			for j < len(glob) && glob[j] != '*' {
				j++
			}
			b.WriteString(regexp.QuoteMeta(glob[i:j]))
			i = j - 1
			continue
		}
		if i+1 < len(glob) && glob[i+1] == '*' {
			b.WriteString(".*")
			i++
			continue
		}
		b.WriteString("[^/]*")
	}
	b.WriteString("$")
	return b.String()
}
