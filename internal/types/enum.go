package types

import "strings"

// EnumVariant is a single raw (name, value) pair discovered by the parser,
// before regularization.
type EnumVariant struct {
	Name  string
	Value int64
}

// RegularizeEnumVariants implements spec section 4.A's enum regularization:
// dedup by value (keep first occurrence), class-case the names, then strip
// the longest common prefix and longest common suffix across words -- in
// that order, per the section 9 open-question resolution that we preserve
// source order when prefix and suffix strip ranges would otherwise
// overlap. The result is idempotent: applying it to its own output is a
// no-op (spec section 8).
func RegularizeEnumVariants(variants []EnumVariant) []EnumVariant {
	deduped := dedupeByValue(variants)
	words := make([][]string, len(deduped))
	for i, v := range deduped {
		words[i] = splitWords(v.Name)
	}

	prefixLen := longestCommonPrefixWords(words)
	suffixLen := longestCommonSuffixWords(words, prefixLen)

	out := make([]EnumVariant, len(deduped))
	for i, v := range deduped {
		w := words[i]
		trimmed := w[prefixLen : len(w)-suffixLen]
		if len(trimmed) == 0 {
			// Stripping would leave nothing: keep the full name instead,
			// per "provided the result has at least one word per variant".
			trimmed = w
		}
		out[i] = EnumVariant{Name: joinClassCase(trimmed), Value: v.Value}
	}
	return out
}

func dedupeByValue(variants []EnumVariant) []EnumVariant {
	seen := make(map[int64]bool, len(variants))
	out := make([]EnumVariant, 0, len(variants))
	for _, v := range variants {
		if seen[v.Value] {
			continue
		}
		seen[v.Value] = true
		out = append(out, v)
	}
	return out
}

func longestCommonPrefixWords(words [][]string) int {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for {
		if n >= len(words[0]) {
			break
		}
		candidate := strings.ToLower(words[0][n])
		ok := true
		for _, w := range words {
			if n >= len(w) || strings.ToLower(w[n]) != candidate {
				ok = false
				break
			}
			// Never strip the last remaining word of any variant.
			if len(w) == n+1 {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		n++
	}
	return n
}

func longestCommonSuffixWords(words [][]string, prefixLen int) int {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for {
		ok := true
		for _, w := range words {
			remaining := len(w) - prefixLen
			if n >= remaining {
				ok = false
				break
			}
			if len(w)-1-n < prefixLen {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		candidate := strings.ToLower(words[0][len(words[0])-1-n])
		for _, w := range words {
			if strings.ToLower(w[len(w)-1-n]) != candidate {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		n++
	}
	return n
}

func joinClassCase(words []string) string {
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = toUpperRune(r[0])
		b.WriteString(string(r))
	}
	if b.Len() == 0 {
		return "Unnamed"
	}
	return b.String()
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
