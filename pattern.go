package mailmerge

import "regexp"

// variableRe matches a {name} token.  A '{' directly followed by text that
// contains another '{' does not start a match, so "{a{b}}" yields only "b".
var variableRe = regexp.MustCompile(`\{([^{}]+)\}`)

// FindVariables returns the names of all {name} tokens in text, in order of
// appearance.  Repeated tokens are returned once per occurrence.
func FindVariables(text string) []string {
	matches := variableRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[1]
	}
	return names
}

// Token returns the literal placeholder for name.
func Token(name string) string {
	return "{" + name + "}"
}
