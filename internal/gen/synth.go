package gen

import (
	"fmt"
	"strings"

	"github.com/mark3labs/camgen/internal/schema"
)

// Field is one property of a declaration.
type Field struct {
	Name     string
	Type     ResolvedType
	Optional bool
	Doc      string
}

// Declaration is one emitted interface. Source holds its TypeScript text.
type Declaration struct {
	Name   string
	Fields []Field
	Source string
}

// Synthesis is the result of synthesizing one parameter tree. Declarations
// lists nested types before the types that reference them; the root
// declaration comes last.
type Synthesis struct {
	RootName     string
	Declarations []Declaration
}

// Root returns the root declaration.
func (s Synthesis) Root() Declaration { return s.Declarations[len(s.Declarations)-1] }

// Synthesizer turns parameter trees into interface declarations.
type Synthesizer struct {
	// AllOptional marks every field optional regardless of Required.
	AllOptional bool
}

// Synthesize runs the default Synthesizer.
func Synthesize(rootName string, params []schema.ParamNode) Synthesis {
	return Synthesizer{}.Synthesize(rootName, params)
}

// Synthesize declares rootName with one field per param, in input order,
// plus one declaration per nested object and array-of-object field. Nested
// names extend rootName with the field path; a name already taken in this
// tree gets a numeric suffix.
func (s Synthesizer) Synthesize(rootName string, params []schema.ParamNode) Synthesis {
	w := &walker{synth: s, used: map[string]bool{rootName: true}}
	w.declare(RootPath(rootName), params)
	return Synthesis{RootName: rootName, Declarations: w.decls}
}

type walker struct {
	synth Synthesizer
	used  map[string]bool
	decls []Declaration
}

func (w *walker) claim(p NamePath) NamePath {
	out := p
	for n := 2; w.used[out.String()]; n++ {
		out = p.withOrdinal(n)
	}
	w.used[out.String()] = true
	return out
}

func (w *walker) declare(path NamePath, params []schema.ParamNode) string {
	name := path.String()
	fields := make([]Field, 0, len(params))
	for _, p := range params {
		fields = append(fields, Field{
			Name:     p.Name,
			Type:     w.resolve(path, p),
			Optional: w.synth.AllOptional || !p.Required,
			Doc:      strings.TrimSpace(p.Description),
		})
	}
	w.decls = append(w.decls, Declaration{Name: name, Fields: fields, Source: renderInterface(name, fields)})
	return name
}

func (w *walker) resolve(parent NamePath, p schema.ParamNode) ResolvedType {
	switch strings.ToLower(string(p.Type)) {
	case "object":
		return RefType{Name: w.declare(w.claim(parent.Field(p.Name)), p.Children)}
	case "array", "list":
		return ArrayType{Elem: w.element(parent, p.Name, p.ArrayChildType, p.Children)}
	}
	return ResolveScalar(string(p.Type))
}

// element resolves the element type of an array field. Nested arrays take
// their element description from the first child node.
func (w *walker) element(parent NamePath, field string, child schema.ParamType, children []schema.ParamNode) ResolvedType {
	switch strings.ToLower(string(child)) {
	case "":
		return DynamicType{}
	case "object":
		return RefType{Name: w.declare(w.claim(parent.Item(field)), children)}
	case "array", "list":
		if len(children) == 0 {
			return ArrayType{Elem: DynamicType{}}
		}
		inner := children[0]
		return ArrayType{Elem: w.element(parent, field, inner.ArrayChildType, inner.Children)}
	}
	return ResolveScalar(string(child))
}

func renderInterface(name string, fields []Field) string {
	if len(fields) == 0 {
		return fmt.Sprintf("export interface %s {}\n", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "export interface %s {\n", name)
	for _, f := range fields {
		if f.Doc != "" {
			b.WriteString(propertyDoc(f.Doc))
		}
		opt := ""
		if f.Optional {
			opt = "?"
		}
		fmt.Fprintf(&b, "  %s%s: %s;\n", PropertyKey(f.Name), opt, TypeScript(f.Type))
	}
	b.WriteString("}\n")
	return b.String()
}

func propertyDoc(description string) string {
	description = strings.ReplaceAll(description, "*/", "*\\/")
	lines := strings.Split(strings.TrimSpace(description), "\n")
	if len(lines) == 1 {
		return fmt.Sprintf("  /** %s */\n", lines[0])
	}
	var b strings.Builder
	b.WriteString("  /**\n")
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			b.WriteString("   *\n")
			continue
		}
		fmt.Fprintf(&b, "   * %s\n", line)
	}
	b.WriteString("   */\n")
	return b.String()
}
