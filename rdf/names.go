package rdf

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
)

// BaseNamespace returns <scheme>://<host><repo path>/<version>/ for a repo URL.
func BaseNamespace(repo, version string) (string, error) {
	u, err := url.Parse(repo)
	if err != nil {
		return "", fmt.Errorf("repo %q: %w", repo, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("repo %q is not an absolute URL", repo)
	}
	p := path.Join("/", u.Path, version)
	return u.Scheme + "://" + u.Host + strings.TrimSuffix(p, "/") + "/", nil
}

// TitleCase turns a display name into an identifier: split on spaces,
// capitalize every token, concatenate and keep only letters and digits.
func TitleCase(s string) string {
	var b strings.Builder
	for _, token := range strings.Split(s, " ") {
		for i, r := range []rune(token) {
			if i == 0 {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			if isASCIIAlnum(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// CamelCase turns a hyphenated key into a camelCase identifier. The first
// token is kept as is.
func CamelCase(s string) string {
	tokens := strings.Split(s, "-")
	var b strings.Builder
	b.WriteString(tokens[0])
	for _, token := range tokens[1:] {
		for i, r := range []rune(token) {
			if i == 0 {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
