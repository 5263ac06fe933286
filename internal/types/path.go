// Package types implements the Type System & Name Model (spec section 4.A):
// canonical representations of source types, paths and operators, and the
// host-side naming rules derived from them. It has no dependency on the
// parser backend or the database -- it is pure data plus pure functions,
// the same layering the teacher used for internal/core's "pure contracts".
package types

import (
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// PathItem is one segment of a qualified source name: an identifier plus an
// optional list of template arguments, themselves full Source Types.
type PathItem struct {
	Name     string
	Template []SourceType
}

// Path is an ordered sequence of PathItems, e.g. A::B::C<int, D>.
// Equality is structural (see Equal / EqualTemplateless).
type Path struct {
	Items []PathItem
}

// NewPath builds a Path from already-resolved items.
func NewPath(items ...PathItem) Path {
	return Path{Items: items}
}

// Last returns the final path item ("C" in A::B::C), or the zero value if
// the path is empty.
func (p Path) Last() PathItem {
	if len(p.Items) == 0 {
		return PathItem{}
	}
	return p.Items[len(p.Items)-1]
}

// ParseMachine parses a Path from its machine-rendered form: segments
// separated by "::", template arguments in "<...>" comma lists. This is the
// inverse of RenderMachine, and parse(render_machine(P)) == P is a tested
// invariant (spec section 8).
func ParseMachine(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, rerror.InvalidName("empty path")
	}
	segs, err := splitTopLevel(s, "::")
	if err != nil {
		return Path{}, err
	}
	items := make([]PathItem, 0, len(segs))
	for _, seg := range segs {
		item, err := parsePathItem(seg)
		if err != nil {
			return Path{}, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Path{}, rerror.InvalidName("path has no segments: " + s)
	}
	return Path{Items: items}, nil
}

func parsePathItem(seg string) (PathItem, error) {
	seg = strings.TrimSpace(seg)
	lt := strings.IndexByte(seg, '<')
	if lt == -1 {
		if seg == "" {
			return PathItem{}, rerror.InvalidName("empty path segment")
		}
		return PathItem{Name: seg}, nil
	}
	if !strings.HasSuffix(seg, ">") {
		return PathItem{}, rerror.InvalidName("unterminated template arguments in " + seg)
	}
	name := seg[:lt]
	inner := seg[lt+1 : len(seg)-1]
	if name == "" {
		return PathItem{}, rerror.InvalidName("missing identifier before template arguments in " + seg)
	}
	argStrs, err := splitTopLevel(inner, ",")
	if err != nil {
		return PathItem{}, err
	}
	args := make([]SourceType, 0, len(argStrs))
	for _, a := range argStrs {
		t, err := ParseTypeMachine(strings.TrimSpace(a))
		if err != nil {
			return PathItem{}, err
		}
		args = append(args, t)
	}
	return PathItem{Name: name, Template: args}, nil
}

// splitTopLevel splits s on sep, but only at nesting depth zero with
// respect to angle brackets, so "A<B,C>::D" splits on "::" into
// ["A<B,C>", "D"] rather than producing a bogus third segment from the
// comma inside the template argument list.
func splitTopLevel(s, sep string) ([]string, error) {
	var out []string
	depth := 0
	start := 0
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '<':
			depth++
			i++
		case s[i] == '>':
			depth--
			if depth < 0 {
				return nil, rerror.InvalidName("unbalanced '>' in " + s)
			}
			i++
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			out = append(out, s[start:i])
			i += len(sep)
			start = i
		default:
			i++
		}
	}
	if depth != 0 {
		return nil, rerror.InvalidName("unbalanced '<' in " + s)
	}
	out = append(out, s[start:])
	return out, nil
}

// RenderMachine renders the machine form used for stable FFI names:
// identifiers joined by "_", template arguments flattened and
// underscore-joined, safe to embed in a C identifier.
func (p Path) RenderMachine() string {
	parts := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		parts = append(parts, it.renderMachine())
	}
	return strings.Join(parts, "_")
}

func (it PathItem) renderMachine() string {
	if len(it.Template) == 0 {
		return it.Name
	}
	args := make([]string, 0, len(it.Template))
	for _, t := range it.Template {
		args = append(args, t.renderMachine())
	}
	return it.Name + "_" + strings.Join(args, "_")
}

// RenderHuman renders the diagnostic/documentation form, e.g. "A::B::C<int, D>".
func (p Path) RenderHuman() string {
	parts := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		parts = append(parts, it.renderHuman())
	}
	return strings.Join(parts, "::")
}

func (it PathItem) renderHuman() string {
	if len(it.Template) == 0 {
		return it.Name
	}
	args := make([]string, 0, len(it.Template))
	for _, t := range it.Template {
		args = append(args, t.renderHuman())
	}
	return it.Name + "<" + strings.Join(args, ", ") + ">"
}

// Equal reports full structural equality, template arguments included.
func (p Path) Equal(o Path) bool {
	if len(p.Items) != len(o.Items) {
		return false
	}
	for i := range p.Items {
		if !p.Items[i].equal(o.Items[i]) {
			return false
		}
	}
	return true
}

func (it PathItem) equal(o PathItem) bool {
	if it.Name != o.Name || len(it.Template) != len(o.Template) {
		return false
	}
	for i := range it.Template {
		if !it.Template[i].Equal(o.Template[i]) {
			return false
		}
	}
	return true
}

// EqualTemplateless reports equality ignoring template arguments -- used to
// group overloads and template instantiations of the same base template.
func (p Path) EqualTemplateless(o Path) bool {
	if len(p.Items) != len(o.Items) {
		return false
	}
	for i := range p.Items {
		if p.Items[i].Name != o.Items[i].Name {
			return false
		}
	}
	return true
}

// SubstituteTemplateParameters replaces every TemplateParameter sub-type
// that matches (nestedLevel, index) with the corresponding concrete
// argument, recursively, across every path item's template arguments. Used
// both here (for paths appearing as template arguments) and in SourceType.
func (p Path) SubstituteTemplateParameters(args []SourceType, nestedLevel int) Path {
	out := Path{Items: make([]PathItem, len(p.Items))}
	for i, it := range p.Items {
		out.Items[i] = PathItem{Name: it.Name, Template: substituteSlice(it.Template, args, nestedLevel)}
	}
	return out
}

func substituteSlice(types []SourceType, args []SourceType, nestedLevel int) []SourceType {
	if types == nil {
		return nil
	}
	out := make([]SourceType, len(types))
	for i, t := range types {
		out[i] = t.SubstituteTemplateParameters(args, nestedLevel)
	}
	return out
}
