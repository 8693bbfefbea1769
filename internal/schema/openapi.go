package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxSchemaDepth stops recursive $ref chains from expanding forever.
const maxSchemaDepth = 8

// ImportOption configures how a service is built from an OpenAPI doc.
type ImportOption func(*importConfig)

type importConfig struct {
	name        string
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HTTPMethod]struct{}
	pathRes     []*regexp.Regexp
}

// WithServiceName overrides the service name taken from info.title.
func WithServiceName(name string) ImportOption {
	return func(c *importConfig) { c.name = strings.TrimSpace(name) }
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) ImportOption {
	return func(c *importConfig) { c.includeTags = addTags(c.includeTags, tags) }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) ImportOption {
	return func(c *importConfig) { c.excludeTags = addTags(c.excludeTags, tags) }
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HTTPMethod) ImportOption {
	return func(c *importConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HTTPMethod]struct{}, len(methods))
			}
			c.methods[NormalizeMethod(string(m))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) ImportOption {
	return func(c *importConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// FromOpenAPI converts an OpenAPI v3 document into a service. Paths are
// visited in sorted order and operations in Methods order, so the result is
// deterministic.
func FromOpenAPI(doc *openapi3.T, opts ...ImportOption) *ServiceSchema {
	cfg := &importConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	svc := &ServiceSchema{}
	if doc == nil {
		return svc
	}
	if doc.Info != nil {
		svc.Name = strings.TrimSpace(doc.Info.Title)
		svc.Version = strings.TrimSpace(doc.Info.Version)
		svc.Description = strings.TrimSpace(doc.Info.Description)
	}
	if cfg.name != "" {
		svc.Name = cfg.name
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		item := doc.Paths[p]
		if item == nil || !cfg.allowPath(p) {
			continue
		}
		for _, pair := range []struct {
			m HTTPMethod
			o *openapi3.Operation
		}{
			{MethodGet, item.Get},
			{MethodPost, item.Post},
			{MethodPut, item.Put},
			{MethodDelete, item.Delete},
			{MethodPatch, item.Patch},
		} {
			if pair.o == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[pair.m]; !ok {
					continue
				}
			}
			tags := make([]string, 0, len(pair.o.Tags))
			for _, t := range pair.o.Tags {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
			if !cfg.allowByTags(tags) {
				continue
			}
			svc.Operations = append(svc.Operations, importOperation(p, pair.m, item, pair.o, tags))
		}
	}
	return svc
}

// Filter applies the path, method and tag filters of opts to an already
// built service and returns a copy holding the operations that pass. A name
// option renames the copy.
func Filter(svc *ServiceSchema, opts ...ImportOption) *ServiceSchema {
	cfg := &importConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	out := *svc
	if cfg.name != "" {
		out.Name = cfg.name
	}
	out.Operations = nil
	for _, op := range svc.Operations {
		if !cfg.allowPath(op.Path) {
			continue
		}
		if len(cfg.methods) > 0 {
			if _, ok := cfg.methods[NormalizeMethod(string(op.Method))]; !ok {
				continue
			}
		}
		if !cfg.allowByTags(op.Tags) {
			continue
		}
		out.Operations = append(out.Operations, op)
	}
	return &out
}

func (c *importConfig) allowPath(p string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func (c *importConfig) allowByTags(tags []string) bool {
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func importOperation(path string, method HTTPMethod, item *openapi3.PathItem, o *openapi3.Operation, tags []string) OperationSchema {
	op := OperationSchema{
		Name:           strings.TrimSpace(o.OperationID),
		Method:         method,
		Path:           path,
		Description:    firstNonEmpty(o.Summary, o.Description),
		Tags:           tags,
		Deprecated:     o.Deprecated,
		RequestParams:  map[Location][]ParamNode{},
		ResponseParams: map[int][]ParamNode{},
	}
	if op.Name == "" {
		op.Name = deriveOperationName(method, path)
	}

	// Path-level parameters first, overridden by operation-level ones.
	type keyed struct {
		node ParamNode
		loc  Location
	}
	var merged []keyed
	index := map[string]int{}
	for _, refs := range []openapi3.Parameters{item.Parameters, o.Parameters} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			loc := Location(strings.ToLower(strings.TrimSpace(p.In)))
			node := paramFromSchema(p.Name, p.Schema, 0)
			node.Required = p.Required || loc == LocationPath
			if d := strings.TrimSpace(p.Description); d != "" {
				node.Description = d
			}
			if p.Example != nil {
				node.Example = scalarText(p.Example)
			}
			k := string(loc) + ":" + p.Name
			if i, ok := index[k]; ok {
				merged[i].node = node
				continue
			}
			index[k] = len(merged)
			merged = append(merged, keyed{node: node, loc: loc})
		}
	}
	for _, m := range merged {
		op.RequestParams[m.loc] = append(op.RequestParams[m.loc], m.node)
	}

	if o.RequestBody != nil && o.RequestBody.Value != nil {
		if sch := pickMedia(o.RequestBody.Value.Content); sch != nil {
			op.RequestParams[LocationBody] = payloadParams(sch, "body", o.RequestBody.Value.Required)
		}
	}

	for code, rref := range o.Responses {
		status, err := strconv.Atoi(code)
		if err != nil || status < 100 || status > 599 || rref == nil || rref.Value == nil {
			continue
		}
		params := []ParamNode{}
		if sch := pickMedia(rref.Value.Content); sch != nil {
			params = payloadParams(sch, "data", true)
		}
		op.ResponseParams[status] = params
	}
	return op
}

// payloadParams flattens an object payload into one parameter per property.
// Any other payload becomes a single parameter called fallback.
func payloadParams(sch *openapi3.SchemaRef, fallback string, required bool) []ParamNode {
	if sch.Value != nil && isObjectSchema(sch.Value) {
		return objectChildren(sch.Value, 0)
	}
	node := paramFromSchema(fallback, sch, 0)
	node.Required = required
	return []ParamNode{node}
}

func pickMedia(content openapi3.Content) *openapi3.SchemaRef {
	if len(content) == 0 {
		return nil
	}
	for _, mime := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt := content[mime]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if mt := content[k]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

func isObjectSchema(s *openapi3.Schema) bool {
	return s.Type == "object" || (s.Type == "" && (len(s.Properties) > 0 || len(s.AllOf) > 0))
}

func paramFromSchema(name string, ref *openapi3.SchemaRef, depth int) ParamNode {
	node := ParamNode{Name: name, Type: TypeString}
	if ref == nil || ref.Value == nil {
		return node
	}
	s := ref.Value
	node.Description = strings.TrimSpace(s.Description)
	if s.Example != nil {
		node.Example = scalarText(s.Example)
	}
	if s.Default != nil {
		node.DefaultValue = scalarText(s.Default)
	}
	node.Type = typeOf(s)
	switch node.Type {
	case TypeObject:
		if depth < maxSchemaDepth {
			node.Children = objectChildren(s, depth+1)
		}
	case TypeArray:
		node.ArrayChildType = TypeString
		if s.Items != nil && s.Items.Value != nil {
			item := s.Items.Value
			node.ArrayChildType = typeOf(item)
			switch node.ArrayChildType {
			case TypeObject:
				if depth < maxSchemaDepth {
					node.Children = objectChildren(item, depth+1)
				}
			case TypeArray:
				if depth < maxSchemaDepth {
					node.Children = []ParamNode{paramFromSchema("item", s.Items, depth+1)}
				}
			}
		}
	}
	return node
}

func objectChildren(s *openapi3.Schema, depth int) []ParamNode {
	props := map[string]*openapi3.SchemaRef{}
	required := map[string]bool{}
	collectProperties(s, props, required, depth)
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ParamNode, 0, len(names))
	for _, n := range names {
		child := paramFromSchema(n, props[n], depth)
		child.Required = required[n]
		out = append(out, child)
	}
	return out
}

func collectProperties(s *openapi3.Schema, props map[string]*openapi3.SchemaRef, required map[string]bool, depth int) {
	if s == nil || depth > maxSchemaDepth {
		return
	}
	for _, part := range s.AllOf {
		if part != nil {
			collectProperties(part.Value, props, required, depth+1)
		}
	}
	for n, p := range s.Properties {
		props[n] = p
	}
	for _, r := range s.Required {
		required[r] = true
	}
}

func typeOf(s *openapi3.Schema) ParamType {
	switch s.Type {
	case "integer":
		return TypeInt
	case "number":
		return TypeDouble
	case "boolean":
		return TypeBoolean
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	case "string":
		if s.Format == "binary" {
			return TypeBinary
		}
		return TypeString
	}
	if isObjectSchema(s) {
		return TypeObject
	}
	if s.Items != nil {
		return TypeArray
	}
	return TypeString
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool, int, int64, float64, float32:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// deriveOperationName builds a camelCase name from method and path, such as
// "getUsersId" for GET /users/{id}.
func deriveOperationName(method HTTPMethod, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(method)))
	upper := true
	for _, r := range path {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
