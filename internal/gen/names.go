package gen

import (
	"strconv"
	"strings"
	"unicode"
)

// placeholderSegment replaces a field name that has no identifier characters.
const placeholderSegment = "Field"

func isIdentRune(r rune, first bool) bool {
	if r == '_' || r == '$' || unicode.IsLetter(r) {
		return true
	}
	return !first && unicode.IsDigit(r)
}

// Capitalize turns a raw name into an identifier fragment: characters that
// cannot appear in an identifier are dropped and the character following
// them is upper-cased, as is the first character. "user-id" becomes
// "UserId" and "user_id" becomes "User_id". The result is empty when name
// has no identifier characters.
func Capitalize(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !isIdentRune(r, false) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TypeName renders name as a declaration or class identifier, using fallback
// when nothing usable remains and prefixing "_" when it would start with a
// digit.
func TypeName(name, fallback string) string {
	s := Capitalize(name)
	if s == "" {
		s = fallback
	}
	if r := []rune(s)[0]; unicode.IsDigit(r) {
		s = "_" + s
	}
	return s
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// PropertyKey renders a field name as a TypeScript property key, quoting it
// when it is not a plain identifier.
func PropertyKey(name string) string {
	if name == "" {
		return `""`
	}
	for i, r := range name {
		if !isIdentRune(r, i == 0) {
			return jsString(name)
		}
	}
	return name
}

// segment is one step of a NamePath: a field name, marked when the step
// descends into the element type of an array.
type segment struct {
	field   string
	item    bool
	ordinal int
}

// NamePath identifies a declaration by its root name and the chain of field
// names leading to it. The identifier is rendered only when the declaration
// is emitted.
type NamePath struct {
	root     string
	segments []segment
}

// RootPath starts a path at an already-rendered root identifier.
func RootPath(root string) NamePath { return NamePath{root: root} }

// Field descends into the object type of the named field.
func (p NamePath) Field(name string) NamePath { return p.with(segment{field: name}) }

// Item descends into the element type of the named array field.
func (p NamePath) Item(name string) NamePath { return p.with(segment{field: name, item: true}) }

func (p NamePath) with(s segment) NamePath {
	segs := make([]segment, len(p.segments), len(p.segments)+1)
	copy(segs, p.segments)
	return NamePath{root: p.root, segments: append(segs, s)}
}

// withOrdinal returns a copy whose last segment renders with a numeric
// suffix; ordinals below 2 render nothing.
func (p NamePath) withOrdinal(n int) NamePath {
	if len(p.segments) == 0 {
		return p
	}
	segs := append([]segment(nil), p.segments...)
	segs[len(segs)-1].ordinal = n
	return NamePath{root: p.root, segments: segs}
}

// Depth is the number of fields between the root and this declaration.
func (p NamePath) Depth() int { return len(p.segments) }

func (p NamePath) String() string {
	var b strings.Builder
	b.WriteString(p.root)
	for _, s := range p.segments {
		part := Capitalize(s.field)
		if part == "" {
			part = placeholderSegment
		}
		b.WriteString(part)
		if s.item {
			b.WriteString("Item")
		}
		if s.ordinal > 1 {
			b.WriteString(strconv.Itoa(s.ordinal))
		}
	}
	return b.String()
}
