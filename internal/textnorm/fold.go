// Package textnorm holds the text folding shared by the keyword heuristics.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Não" and "nao" compare
// equal. Keyword tables are written in folded form.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// FirstMatch returns the first needle, in needle order, that occurs in folded
// at the start of a word, or "". A needle may end mid-word, so stems such as
// "prestac" match "prestacoes", but "pagar" does not match inside "apagar".
func FirstMatch(folded string, needles []string) string {
	for _, n := range needles {
		if HasWordPrefix(folded, n) {
			return n
		}
	}
	return ""
}

// HasWordPrefix reports whether prefix occurs in s where it is not preceded
// by a letter or digit.
func HasWordPrefix(s, prefix string) bool {
	if prefix == "" {
		return false
	}
	for from := 0; from <= len(s)-len(prefix); {
		i := strings.Index(s[from:], prefix)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 || !isWordRune(lastRune(s[:at])) {
			return true
		}
		from = at + 1
	}
	return false
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
