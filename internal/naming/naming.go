package naming

import (
	"strings"
	"unicode"
)

// OperationName synthesizes a tool name from an HTTP method and a path
// template: the lower-cased method followed by every non-placeholder path
// word, capitalized. `get /workflows/{ns}/{name}` becomes `getWorkflows`.
func OperationName(method, path string) string {
	var result strings.Builder
	result.WriteString(strings.ToLower(method))
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || isPlaceholder(segment) {
			continue
		}
		for _, word := range splitWords(segment) {
			result.WriteString(Capitalize(word))
		}
	}
	return result.String()
}

// PascalCase joins the words of s, each capitalized.
func PascalCase(s string) string {
	var result strings.Builder
	for _, word := range splitWords(s) {
		result.WriteString(Capitalize(word))
	}
	return result.String()
}

// Anchor turns a heading into a Markdown anchor.
func Anchor(s string) string {
	words := splitWords(s)
	for i, word := range words {
		words[i] = strings.ToLower(word)
	}
	return strings.Join(words, "-")
}

func isPlaceholder(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

func splitWords(s string) []string {
	var words []string
	var current strings.Builder

	for i, r := range s {
		if r == '_' || r == '-' || r == ' ' || r == '.' || r == ':' {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}

		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				if current.Len() > 0 {
					words = append(words, current.String())
					current.Reset()
				}
			}
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// Capitalize upper-cases the first rune of s and lower-cases the rest.
func Capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
