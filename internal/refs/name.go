package refs

import (
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/gobwas/glob"
)

// Pattern selects reference names for bulk lookups.
//
// A pattern containing glob metacharacters is matched against the whole name,
// with "*" matching within a single path segment and "**" matching across
// segments. A pattern without metacharacters matches the name itself and
// everything below it (e.g., "refs/heads" matches "refs/heads/main" but not
// "refs/headsup"). The empty pattern matches every name.
type Pattern struct {
	raw    string
	prefix string
	glob   glob.Glob
}

// CompilePattern compiles the given pattern.
func CompilePattern(pattern string) (Pattern, error) {
	if !hasGlobMeta(pattern) {
		return Pattern{raw: pattern, prefix: strings.TrimSuffix(pattern, "/")}, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return Pattern{}, errors.WrapIff(err, "invalid reference pattern %q", pattern)
	}
	return Pattern{raw: pattern, glob: g}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(pattern string) Pattern {
	p, err := CompilePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.raw
}

// Match returns true if the reference name is selected by the pattern.
func (p Pattern) Match(name plumbing.ReferenceName) bool {
	if p.glob != nil {
		return p.glob.Match(name.String())
	}
	if p.prefix == "" {
		return true
	}
	s := name.String()
	return s == p.prefix || strings.HasPrefix(s, p.prefix+"/")
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

const namespacePrefix = "refs/namespaces/"

// Namespace multiplexes a single reference directory into isolated logical
// directories, the way git's GIT_NAMESPACE does. A namespace may contain
// slashes, in which case the namespaces are nested.
type Namespace string

func (ns Namespace) root() string {
	var sb strings.Builder
	for _, part := range strings.Split(strings.Trim(string(ns), "/"), "/") {
		if part == "" {
			continue
		}
		sb.WriteString(namespacePrefix)
		sb.WriteString(part)
		sb.WriteString("/")
	}
	return sb.String()
}

// Qualify returns the physical name of the given logical name inside the
// namespace.
func (ns Namespace) Qualify(name plumbing.ReferenceName) plumbing.ReferenceName {
	return plumbing.ReferenceName(ns.root() + name.String())
}

// Strip returns the logical name of a physical name. The second return value
// is false if the name is not inside the namespace.
func (ns Namespace) Strip(name plumbing.ReferenceName) (plumbing.ReferenceName, bool) {
	stripped, ok := strings.CutPrefix(name.String(), ns.root())
	if !ok || stripped == "" {
		return "", false
	}
	return plumbing.ReferenceName(stripped), true
}

// QualifyPattern returns a pattern matching the physical names of the logical
// names selected by pattern.
func (ns Namespace) QualifyPattern(pattern string) (Pattern, error) {
	return CompilePattern(ns.root() + pattern)
}
