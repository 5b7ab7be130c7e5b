// Package strutil holds the small string helpers the assembler leans on.
package strutil

import "strings"

// Split cuts txt at every occurrence of delim.
//
// It follows stream-reader semantics rather than strings.Split: an empty
// input yields no parts and a single trailing delimiter does not produce a
// trailing empty part. Empty parts between two delimiters are kept.
//
//	Split("a b", ' ')  -> ["a" "b"]
//	Split("a b ", ' ') -> ["a" "b"]
//	Split("a  b", ' ') -> ["a" "" "b"]
//	Split("", ' ')     -> []
func Split(txt string, delim byte) []string {
	if txt == "" {
		return nil
	}
	parts := strings.Split(txt, string(delim))
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Strip returns txt with leading and trailing whitespace removed.
func Strip(txt string) string {
	return strings.TrimSpace(txt)
}
