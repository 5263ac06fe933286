package types

import (
	"strings"
	"unicode"
)

// hostKeywords lists identifiers the naming rules must avoid colliding
// with; kept small and explicit rather than importing a keyword table,
// since the host language's reserved-word set is fixed and small.
var hostKeywords = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "crate": true,
	"dyn": true, "else": true, "enum": true, "extern": true, "false": true,
	"fn": true, "for": true, "if": true, "impl": true, "in": true, "let": true,
	"loop": true, "match": true, "mod": true, "move": true, "mut": true,
	"pub": true, "ref": true, "return": true, "self": true, "Self": true,
	"static": true, "struct": true, "super": true, "trait": true, "true": true,
	"type": true, "unsafe": true, "use": true, "where": true, "while": true,
	"async": true, "await": true, "box": true, "try": true,
}

// NameConfig tunes the otherwise-deterministic naming rules.
type NameConfig struct {
	CrateName string
	// StripQPrefix optionally strips a leading "Q"/"Qt" prefix from
	// multi-word identifiers (spec section 4.A, rule 3).
	StripQPrefix bool
}

// HostPath is a fully-qualified location in the generated host package:
// module path components plus a final item name.
type HostPath struct {
	ModuleParts []string
	Name        string
}

func (h HostPath) String() string {
	if len(h.ModuleParts) == 0 {
		return h.Name
	}
	return strings.Join(h.ModuleParts, "::") + "::" + h.Name
}

// IsType says whether the name should be rendered in class-case (true) or
// snake_case (false).
type NameKindHint int

const (
	HintType NameKindHint = iota
	HintFunction
)

// HostName computes the host module path and item name for a source Path
// declared in includeFile, following spec section 4.A's numbered rule set.
func HostName(p Path, includeFile string, hint NameKindHint, cfg NameConfig) HostPath {
	last := p.Last()
	name := last.Name
	if cfg.StripQPrefix {
		name = stripQPrefix(name)
	}

	var rendered string
	switch hint {
	case HintType:
		rendered = toClassCase(name)
	default:
		rendered = toSnakeCase(name)
	}
	if hostKeywords[rendered] {
		rendered += "_"
	}

	parts := []string{cfg.CrateName, sanitizeIdent(includeFile)}
	// Collapse an immediate duplicate pair: crate_name == sanitize(include file).
	if len(parts) >= 2 && parts[0] == parts[1] {
		parts = parts[:1]
	}
	for _, it := range p.Items[:max(0, len(p.Items)-1)] {
		parts = append(parts, sanitizeIdent(it.Name))
	}

	return HostPath{ModuleParts: parts, Name: rendered}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// stripQPrefix removes a leading "Q" or "Qt" from a multi-word identifier,
// e.g. "QWidget" -> "Widget", "QtConcurrent" -> "Concurrent". Single-word
// identifiers and names that are just "Q"/"Qt" are left untouched.
func stripQPrefix(name string) string {
	for _, prefix := range []string{"Qt", "Q"} {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			rest := name[len(prefix):]
			if rest != "" && unicode.IsUpper(rune(rest[0])) {
				return rest
			}
		}
	}
	return name
}

// sanitizeIdent lowercases and replaces any run of non-alphanumeric
// characters with a single underscore, producing a valid host module
// segment from an include file name like "QtCore/qobject.h".
func sanitizeIdent(s string) string {
	var b strings.Builder
	lastWasSep := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastWasSep = false
		default:
			if !lastWasSep && b.Len() > 0 {
				b.WriteByte('_')
				lastWasSep = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "root"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// splitWords breaks an identifier into words on case boundaries and
// underscores, e.g. "myHTTPServer" -> ["my", "HTTP", "Server"],
// "my_http_server" -> ["my", "http", "server"].
func splitWords(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			flush()
		case unicode.IsUpper(r):
			if len(cur) > 0 {
				prevLower := unicode.IsLower(cur[len(cur)-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(cur[len(cur)-1])) {
					flush()
				}
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func toClassCase(s string) string {
	words := splitWords(s)
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	if b.Len() == 0 {
		return "Unnamed"
	}
	return b.String()
}

func toSnakeCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	out := strings.Join(words, "_")
	if out == "" {
		return "unnamed"
	}
	return out
}

// ASCIIOperatorName renders a source operator token (the trailing
// identifier of "operator+" and friends, or the target type of a
// conversion operator) into a valid host/FFI identifier fragment, per spec
// section 4.E.1 ("Operators are rendered to ASCII").
func ASCIIOperatorName(op string) string {
	if rest, ok := strings.CutPrefix(op, "operator"); ok {
		rest = strings.TrimSpace(rest)
		if name, ok := operatorNames[rest]; ok {
			return "operator_" + name
		}
		if rest != "" {
			// Conversion operator: "operator T&" -> "convert_to_T_ref".
			target := sanitizeOperatorType(rest)
			return "convert_to_" + target
		}
	}
	return sanitizeIdent(op)
}

func sanitizeOperatorType(s string) string {
	s = strings.TrimSpace(s)
	suffix := ""
	for strings.HasSuffix(s, "&") || strings.HasSuffix(s, "*") {
		if strings.HasSuffix(s, "&") {
			suffix = "_ref" + suffix
		} else {
			suffix = "_ptr" + suffix
		}
		s = strings.TrimSpace(s[:len(s)-1])
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	return strings.TrimSuffix(b.String(), "_") + suffix
}

var operatorNames = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "rem",
	"+=": "add_assign", "-=": "sub_assign", "*=": "mul_assign", "/=": "div_assign", "%=": "rem_assign",
	"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge",
	"&&": "and", "||": "or", "!": "not",
	"&": "bitand", "|": "bitor", "^": "bitxor", "~": "bitnot",
	"<<": "shl", ">>": "shr", "<<=": "shl_assign", ">>=": "shr_assign",
	"&=": "bitand_assign", "|=": "bitor_assign", "^=": "bitxor_assign",
	"[]": "index", "()": "call", "->": "arrow", "=": "assign",
	"++": "inc", "--": "dec", "new": "new", "delete": "delete",
}
