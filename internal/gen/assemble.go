package gen

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mark3labs/camgen/internal/schema"
)

// DynamicTypeName is the permissive type used when an operation declares no
// request or response parameters.
const DynamicTypeName = "any"

// CompositeOrder is the order in which per-location request interfaces are
// joined into the composite request type.
var CompositeOrder = []schema.Location{
	schema.LocationBody,
	schema.LocationQuery,
	schema.LocationPath,
	schema.LocationHeader,
	schema.LocationCookie,
}

// Composition selects how per-status response interfaces combine.
type Composition int

const (
	// ComposeIntersection joins response interfaces with " & ".
	ComposeIntersection Composition = iota
	// ComposeUnion joins response interfaces with " | ".
	ComposeUnion
)

// ParseComposition accepts "intersection" (or "") and "union".
func ParseComposition(s string) (Composition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intersection":
		return ComposeIntersection, true
	case "union":
		return ComposeUnion, true
	}
	return ComposeIntersection, false
}

func (c Composition) String() string {
	if c == ComposeUnion {
		return "union"
	}
	return "intersection"
}

// LocationPart describes one request location of an operation. Interface is
// empty and Fields is empty when the location carries no parameters.
type LocationPart struct {
	Location  schema.Location
	Interface string
	Fields    []string
}

// ResponsePart names the root interface of one response status.
type ResponsePart struct {
	StatusCode int
	Interface  string
}

// OperationDescriptor is everything the service emitter needs to write one
// client method.
type OperationDescriptor struct {
	Name         string
	FunctionName string
	Method       schema.HTTPMethod
	Path         string
	Description  string
	Deprecated   bool

	// Locations holds one entry per location, in CompositeOrder.
	Locations []LocationPart
	// Responses is sorted by ascending status code.
	Responses []ResponsePart

	RequestType     string
	RequestOptional bool
	ResponseType    string
}

// Location returns the part for loc.
func (d OperationDescriptor) Location(loc schema.Location) LocationPart {
	for _, p := range d.Locations {
		if p.Location == loc {
			return p
		}
	}
	return LocationPart{Location: loc}
}

// TypeNames lists the interfaces the method signature references, request
// interfaces first.
func (d OperationDescriptor) TypeNames() []string {
	var out []string
	for _, p := range d.Locations {
		if p.Interface != "" {
			out = append(out, p.Interface)
		}
	}
	for _, r := range d.Responses {
		out = append(out, r.Interface)
	}
	return out
}

func (d *OperationDescriptor) compose(c Composition) {
	var req []string
	for _, p := range d.Locations {
		if p.Interface != "" {
			req = append(req, p.Interface)
		}
	}
	d.RequestType, d.RequestOptional = DynamicTypeName, true
	if len(req) > 0 {
		d.RequestType, d.RequestOptional = strings.Join(req, " & "), false
	}

	resp := make([]string, 0, len(d.Responses))
	for _, r := range d.Responses {
		resp = append(resp, r.Interface)
	}
	d.ResponseType = DynamicTypeName
	if len(resp) > 0 {
		sep := " & "
		if c == ComposeUnion {
			sep = " | "
		}
		d.ResponseType = strings.Join(resp, sep)
	}
}

// Group is one synthesized root: a request location or a response status.
type Group struct {
	Synthesis
	Location   schema.Location
	StatusCode int

	params []schema.ParamNode
	synth  Synthesizer
}

// IsResponse reports whether the group describes a response status.
func (g Group) IsResponse() bool { return g.StatusCode != 0 }

// Assembly is the result of assembling one operation.
type Assembly struct {
	Descriptor OperationDescriptor
	Groups     []Group
}

// Declarations flattens the declarations of every group.
func (a Assembly) Declarations() []Declaration {
	var out []Declaration
	for _, g := range a.Groups {
		out = append(out, g.Declarations...)
	}
	return out
}

// Assembler derives the declarations and descriptor of an operation.
type Assembler struct {
	// ResponseOptional marks every response field optional.
	ResponseOptional bool
	Composition      Composition
}

// Assemble runs the default Assembler.
func Assemble(op schema.OperationSchema) Assembly { return Assembler{}.Assemble(op) }

// Assemble names and synthesizes the root interface of every non-empty
// request location and response status of op.
func (a Assembler) Assemble(op schema.OperationSchema) Assembly {
	base := OperationTypeName(op.Name)
	d := OperationDescriptor{
		Name:         op.Name,
		FunctionName: FunctionName(op.Name, op.Method),
		Method:       op.Method,
		Path:         op.Path,
		Description:  op.Description,
		Deprecated:   op.Deprecated,
	}
	var groups []Group

	request := Synthesizer{}
	for _, loc := range CompositeOrder {
		params := op.Request(loc)
		part := LocationPart{Location: loc, Fields: []string{}}
		if len(params) > 0 {
			root := base + Capitalize(string(loc)) + "Request"
			g := Group{Synthesis: request.Synthesize(root, params), Location: loc, params: params, synth: request}
			groups = append(groups, g)
			part.Interface = root
			for _, p := range params {
				part.Fields = append(part.Fields, p.Name)
			}
		}
		d.Locations = append(d.Locations, part)
	}

	response := Synthesizer{AllOptional: a.ResponseOptional}
	for _, code := range op.StatusCodes() {
		params := op.ResponseParams[code]
		if len(params) == 0 {
			continue
		}
		root := base + strconv.Itoa(code) + "Response"
		g := Group{Synthesis: response.Synthesize(root, params), StatusCode: code, params: params, synth: response}
		groups = append(groups, g)
		d.Responses = append(d.Responses, ResponsePart{StatusCode: code, Interface: root})
	}

	d.compose(a.Composition)
	return Assembly{Descriptor: d, Groups: groups}
}

// OperationTypeName is the prefix shared by every root interface of an
// operation.
func OperationTypeName(name string) string { return TypeName(name, "Operation") }

// FunctionName is the client method name of an operation: the capitalized
// name with its first letter lowered, followed by the upper-cased method,
// as in "getUserGET".
func FunctionName(name string, method schema.HTTPMethod) string {
	var verb strings.Builder
	for _, r := range strings.ToUpper(string(method)) {
		if unicode.IsLetter(r) {
			verb.WriteRune(r)
		}
	}
	return lowerFirst(OperationTypeName(name)) + verb.String()
}
