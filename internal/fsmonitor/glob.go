package fsmonitor

import (
	"regexp"
	"strings"
	"sync"
)

// translateGlob turns a shell-style glob into an anchored regular
// expression. Unlike original_source's fnmatch.translate (where a bare
// '*' already crosses path separators, making "*" and "**/*" equivalent),
// this translator gives '*' single-path-segment semantics and reserves
// '**' for crossing separators — the semantics the spec's own boundary
// behaviour requires ("triggering_path = '*' matches every file directly
// under base_dir; '**/*' ... matches deeper").
func translateGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '*' && i+1 < len(runes) && runes[i+1] == '*':
			b.WriteString(".*")
			i++
			// Swallow an immediately following slash so "**/x" doesn't
			// require a doubled separator against a zero-depth match.
			if i+1 < len(runes) && runes[i+1] == '/' {
				i++
			}
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		case c == '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				b.WriteString(string(runes[i : j+1]))
				i = j
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// globCache memoises compiled patterns keyed by their source glob string,
// since the same pattern is matched against many candidate paths.
type globCache struct {
	mu    sync.Mutex
	compo map[string]*regexp.Regexp
}

func newGlobCache() *globCache {
	return &globCache{compo: make(map[string]*regexp.Regexp)}
}

func (c *globCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.compo[pattern]; ok {
		return re, nil
	}
	re, err := translateGlob(pattern)
	if err != nil {
		return nil, err
	}
	c.compo[pattern] = re
	return re, nil
}
