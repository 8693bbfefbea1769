package schema

import (
	"sort"
	"strings"
)

// ParamType is the declared type tag of a parameter node. Unknown tags are
// preserved as-is so lint can report them and generation can degrade them to
// a dynamic type.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInt     ParamType = "int"
	TypeDouble  ParamType = "double"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	TypeBinary  ParamType = "binary"
)

// Location is where a request parameter travels.
type Location string

const (
	LocationQuery  Location = "query"
	LocationPath   Location = "path"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
	LocationBody   Location = "body"
)

// Locations lists request locations in document order.
var Locations = []Location{LocationQuery, LocationPath, LocationHeader, LocationCookie, LocationBody}

// HTTPMethod is an upper-cased HTTP verb.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
)

// Methods lists the verbs a service document may declare, in operation order.
var Methods = []HTTPMethod{MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch}

// ParamNode is one field of a request or response payload. Object and
// array-of-object nodes carry their fields in Children.
type ParamNode struct {
	Name           string      `json:"name" yaml:"name" validate:"required"`
	Type           ParamType   `json:"type" yaml:"type" validate:"required,oneof=string int double boolean array object binary"`
	Required       bool        `json:"required" yaml:"required"`
	Description    string      `json:"description,omitempty" yaml:"description,omitempty"`
	Example        string      `json:"example,omitempty" yaml:"example,omitempty"`
	DefaultValue   string      `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	ArrayChildType ParamType   `json:"array_child_type,omitempty" yaml:"array_child_type,omitempty" validate:"required_if=Type array"`
	Children       []ParamNode `json:"children_params,omitempty" yaml:"children_params,omitempty"`
}

// IsObject reports whether the node declares an object payload.
func (p ParamNode) IsObject() bool { return p.Type == TypeObject }

// IsArray reports whether the node declares an array payload.
func (p ParamNode) IsArray() bool { return p.Type == TypeArray }

// OperationSchema describes one API endpoint.
type OperationSchema struct {
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Method      HTTPMethod `json:"method" yaml:"method" validate:"required,oneof=GET POST PUT DELETE PATCH"`
	Path        string     `json:"path" yaml:"path" validate:"required,startswith=/"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Deprecated marks operations the registry reports as disabled.
	Deprecated bool `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`

	RequestParams  map[Location][]ParamNode `json:"request_params_by_location,omitempty" yaml:"request_params_by_location,omitempty"`
	ResponseParams map[int][]ParamNode      `json:"response_params_by_status_code,omitempty" yaml:"response_params_by_status_code,omitempty"`
}

// Request returns the root parameters for a location.
func (o OperationSchema) Request(loc Location) []ParamNode { return o.RequestParams[loc] }

// StatusCodes returns the response status codes in ascending order.
func (o OperationSchema) StatusCodes() []int {
	codes := make([]int, 0, len(o.ResponseParams))
	for code := range o.ResponseParams {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// ServiceSchema is a named collection of operations.
type ServiceSchema struct {
	Name        string            `json:"name" yaml:"name"`
	UUID        string            `json:"service_uuid,omitempty" yaml:"service_uuid,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Operations  []OperationSchema `json:"apis" yaml:"apis"`
}

// NormalizeMethod upper-cases and trims an HTTP verb.
func NormalizeMethod(m string) HTTPMethod {
	return HTTPMethod(strings.ToUpper(strings.TrimSpace(m)))
}

// KnownMethod reports whether m is one of Methods.
func KnownMethod(m HTTPMethod) bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// KnownType reports whether t is one of the documented parameter types.
func KnownType(t ParamType) bool {
	switch t {
	case TypeString, TypeInt, TypeDouble, TypeBoolean, TypeArray, TypeObject, TypeBinary:
		return true
	}
	return false
}

// KnownLocation reports whether loc is one of Locations.
func KnownLocation(loc Location) bool {
	for _, known := range Locations {
		if loc == known {
			return true
		}
	}
	return false
}
