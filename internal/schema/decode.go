package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// text accepts any scalar where a document should carry a string. Registry
// exports sometimes store examples and defaults as numbers or booleans, and
// null stands for "absent".
type text string

func (t *text) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*t = ""
			return nil
		}
		*t = text(n.Value)
		return nil
	case yaml.AliasNode:
		return t.UnmarshalYAML(n.Alias)
	default:
		out, err := yaml.Marshal(n)
		if err != nil {
			return err
		}
		*t = text(strings.TrimSpace(string(out)))
		return nil
	}
}

type paramDocument struct {
	Name           string          `yaml:"name"`
	Type           text            `yaml:"type"`
	Required       bool            `yaml:"required"`
	Description    text            `yaml:"description"`
	Example        text            `yaml:"example"`
	DefaultValue   text            `yaml:"default_value"`
	ArrayChildType text            `yaml:"array_child_type"`
	ChildrenParams []paramDocument `yaml:"children_params"`
	Children       []paramDocument `yaml:"children"`
}

// paramRow is the flat, database-shaped form of a parameter: parents are
// referenced by id instead of nesting.
type paramRow struct {
	ID            int    `yaml:"id"`
	ParentParamID *int   `yaml:"parent_param_id"`
	Location      string `yaml:"location"`
	StatusCode    text   `yaml:"status_code"`
	paramDocument `yaml:",inline"`
}

type apiDocument struct {
	Name                       string                     `yaml:"name"`
	Method                     string                     `yaml:"method"`
	Path                       string                     `yaml:"path"`
	Description                text                       `yaml:"description"`
	Tags                       []string                   `yaml:"tags"`
	IsEnabled                  *bool                      `yaml:"is_enabled"`
	RequestParamsByLocation    map[string][]paramDocument `yaml:"request_params_by_location"`
	ResponseParamsByStatusCode map[string][]paramDocument `yaml:"response_params_by_status_code"`
	RequestParams              []paramRow                 `yaml:"request_params"`
	ResponseParams             []paramRow                 `yaml:"response_params"`
}

type serviceDocument struct {
	Name        string        `yaml:"name"`
	ServiceUUID string        `yaml:"service_uuid"`
	Version     text          `yaml:"version"`
	Description text          `yaml:"description"`
	APIs        []apiDocument `yaml:"apis"`
}

// Decode parses a service document in JSON or YAML. Three shapes are
// accepted: a service with an "apis" list, a registry envelope carrying the
// service under "service", and a single API detail object, which becomes a
// one-operation service.
func Decode(data []byte) (*ServiceSchema, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse service document: %w", err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse service document: expected a mapping at the top level")
	}
	if svc := mappingValue(node, "service"); svc != nil && svc.Kind == yaml.MappingNode {
		node = svc
	}

	if mappingValue(node, "apis") != nil {
		var doc serviceDocument
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode service document: %w", err)
		}
		out := &ServiceSchema{
			Name:        doc.Name,
			UUID:        doc.ServiceUUID,
			Version:     string(doc.Version),
			Description: string(doc.Description),
		}
		for i, api := range doc.APIs {
			op, err := api.operation()
			if err != nil {
				return nil, fmt.Errorf("apis[%d]: %w", i, err)
			}
			out.Operations = append(out.Operations, op)
		}
		return out, nil
	}

	var api apiDocument
	if err := node.Decode(&api); err != nil {
		return nil, fmt.Errorf("decode api document: %w", err)
	}
	op, err := api.operation()
	if err != nil {
		return nil, err
	}
	return &ServiceSchema{Name: op.Name, Operations: []OperationSchema{op}}, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func (a apiDocument) operation() (OperationSchema, error) {
	op := OperationSchema{
		Name:           a.Name,
		Method:         NormalizeMethod(a.Method),
		Path:           strings.TrimSpace(a.Path),
		Description:    string(a.Description),
		Tags:           a.Tags,
		Deprecated:     a.IsEnabled != nil && !*a.IsEnabled,
		RequestParams:  map[Location][]ParamNode{},
		ResponseParams: map[int][]ParamNode{},
	}

	// Location keys come from a mapping, so walk them sorted to keep any
	// error message stable.
	locKeys := make([]string, 0, len(a.RequestParamsByLocation))
	for k := range a.RequestParamsByLocation {
		locKeys = append(locKeys, k)
	}
	sort.Strings(locKeys)
	for _, k := range locKeys {
		loc := Location(strings.ToLower(strings.TrimSpace(k)))
		op.RequestParams[loc] = append(op.RequestParams[loc], convertParams(a.RequestParamsByLocation[k])...)
	}
	statusKeys := make([]string, 0, len(a.ResponseParamsByStatusCode))
	for k := range a.ResponseParamsByStatusCode {
		statusKeys = append(statusKeys, k)
	}
	sort.Strings(statusKeys)
	for _, k := range statusKeys {
		code, err := parseStatus(k)
		if err != nil {
			return op, fmt.Errorf("response_params_by_status_code: %w", err)
		}
		op.ResponseParams[code] = append(op.ResponseParams[code], convertParams(a.ResponseParamsByStatusCode[k])...)
	}

	if len(a.RequestParams) > 0 {
		for loc, params := range organizeRequestRows(a.RequestParams) {
			op.RequestParams[loc] = append(op.RequestParams[loc], params...)
		}
	}
	if len(a.ResponseParams) > 0 {
		byStatus, err := organizeResponseRows(a.ResponseParams)
		if err != nil {
			return op, err
		}
		for code, params := range byStatus {
			op.ResponseParams[code] = append(op.ResponseParams[code], params...)
		}
	}
	return op, nil
}

func parseStatus(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || code < 100 || code > 599 {
		return 0, fmt.Errorf("invalid status code %q", s)
	}
	return code, nil
}

func convertParams(docs []paramDocument) []ParamNode {
	if len(docs) == 0 {
		return nil
	}
	out := make([]ParamNode, 0, len(docs))
	for _, d := range docs {
		node := d.node()
		node.Children = convertParams(append(append([]paramDocument{}, d.ChildrenParams...), d.Children...))
		out = append(out, node)
	}
	return out
}

func (d paramDocument) node() ParamNode {
	return ParamNode{
		Name:           d.Name,
		Type:           ParamType(strings.ToLower(strings.TrimSpace(string(d.Type)))),
		Required:       d.Required,
		Description:    string(d.Description),
		Example:        string(d.Example),
		DefaultValue:   string(d.DefaultValue),
		ArrayChildType: ParamType(strings.ToLower(strings.TrimSpace(string(d.ArrayChildType)))),
	}
}
