package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// OpenAPIVersion is the version string written by ToOpenAPI.
const OpenAPIVersion = "3.1.0"

// ToOpenAPI renders a service as an OpenAPI document. Request bodies and
// responses become named component schemas referenced from the operations;
// the remaining locations become operation parameters.
func ToOpenAPI(svc *ServiceSchema) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       firstNonEmpty(svc.Name, svc.UUID, "service"),
			Description: svc.Description,
			Version:     firstNonEmpty(svc.Version, "0.0.0"),
		},
		Paths:      openapi3.Paths{},
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	for _, op := range svc.Operations {
		o := &openapi3.Operation{
			Description: op.Description,
			OperationID: op.Name,
			Tags:        op.Tags,
			Deprecated:  op.Deprecated,
			Responses:   openapi3.Responses{},
		}
		for _, loc := range []Location{LocationQuery, LocationPath, LocationHeader, LocationCookie} {
			for _, p := range op.Request(loc) {
				o.Parameters = append(o.Parameters, &openapi3.ParameterRef{Value: &openapi3.Parameter{
					Name:        p.Name,
					In:          string(loc),
					Required:    p.Required || loc == LocationPath,
					Description: p.Description,
					Schema:      openapi3.NewSchemaRef("", paramSchema(p)),
				}})
			}
		}

		component := ComponentName(op.Name)
		if body := op.Request(LocationBody); len(body) > 0 {
			ref := registerRoot(doc, component+"Request", body)
			o.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(ref),
			}}
		}
		for _, code := range op.StatusCodes() {
			name := component + "Response"
			if code != 200 {
				name += strconv.Itoa(code)
			}
			desc := fmt.Sprintf("Response for %d", code)
			o.Responses[strconv.Itoa(code)] = &openapi3.ResponseRef{Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(registerRoot(doc, name, op.ResponseParams[code])),
			}}
		}

		item := doc.Paths[op.Path]
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths[op.Path] = item
		}
		item.SetOperation(string(op.Method), o)
	}
	return doc
}

func registerRoot(doc *openapi3.T, name string, params []ParamNode) *openapi3.SchemaRef {
	s := objectSchema(params)
	doc.Components.Schemas[name] = openapi3.NewSchemaRef("", s)
	return openapi3.NewSchemaRef("#/components/schemas/"+name, s)
}

func objectSchema(params []ParamNode) *openapi3.Schema {
	s := &openapi3.Schema{Type: "object"}
	if len(params) == 0 {
		return s
	}
	s.Properties = openapi3.Schemas{}
	for _, p := range params {
		s.Properties[p.Name] = openapi3.NewSchemaRef("", paramSchema(p))
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func paramSchema(p ParamNode) *openapi3.Schema {
	var s *openapi3.Schema
	switch p.Type {
	case TypeObject:
		s = objectSchema(p.Children)
	case TypeArray:
		s = &openapi3.Schema{Type: "array"}
		child := firstNonEmpty(string(p.ArrayChildType), string(TypeString))
		if ParamType(child) == TypeObject {
			s.Items = openapi3.NewSchemaRef("", objectSchema(p.Children))
		} else {
			s.Items = openapi3.NewSchemaRef("", scalarSchema(ParamType(child)))
		}
	default:
		s = scalarSchema(p.Type)
	}
	s.Description = p.Description
	if p.Example != "" {
		s.Example = p.Example
	}
	if d := p.DefaultValue; d != "" && d != "null" && d != "undefined" {
		s.Default = coerceDefault(p.Type, d)
	}
	return s
}

func scalarSchema(t ParamType) *openapi3.Schema {
	switch t {
	case TypeInt:
		return &openapi3.Schema{Type: "integer", Format: "int64"}
	case TypeDouble:
		return &openapi3.Schema{Type: "number", Format: "double"}
	case TypeBoolean:
		return &openapi3.Schema{Type: "boolean"}
	case TypeBinary:
		return &openapi3.Schema{Type: "string", Format: "binary"}
	case TypeObject:
		return &openapi3.Schema{Type: "object"}
	case TypeArray:
		return &openapi3.Schema{Type: "array"}
	}
	return &openapi3.Schema{Type: "string"}
}

// coerceDefault converts a textual default to the parameter's type, keeping
// the text when it does not parse.
func coerceDefault(t ParamType, v string) any {
	switch t {
	case TypeInt:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case TypeDouble:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return v
}

// ComponentName converts an operation name to the PascalCase form used for
// exported component schemas: "get_user" and "getUser" both become "GetUser".
// Every upper-case letter starts a new word.
func ComponentName(name string) string {
	var words []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			flush()
			cur = append(cur, c)
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			cur = append(cur, c)
		default:
			flush()
		}
	}
	flush()
	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(strings.ToLower(w[1:]))
	}
	return b.String()
}

// MarshalOpenAPI encodes doc as YAML or JSON depending on the file extension
// of target. Unknown extensions and "-" produce YAML.
func MarshalOpenAPI(doc *openapi3.T, target string) ([]byte, error) {
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	if strings.EqualFold(filepath.Ext(target), ".json") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, js, "", "  "); err != nil {
			return nil, fmt.Errorf("encode openapi: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}
	// JSON is valid YAML; decoding into a node keeps key order.
	var node yaml.Node
	if err := yaml.Unmarshal(js, &node); err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	clearStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode openapi: %w", err)
	}
	return buf.Bytes(), nil
}

// clearStyle drops the flow and quoting styles inherited from JSON input so
// the encoder emits block YAML.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
