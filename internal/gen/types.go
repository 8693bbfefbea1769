package gen

import (
	"fmt"
	"strings"
)

// Kind discriminates ResolvedType variants.
type Kind int

const (
	KindScalar Kind = iota
	KindReference
	KindArray
	KindDynamic
)

// Scalar is a primitive field type.
type Scalar int

const (
	ScalarNumber Scalar = iota
	ScalarString
	ScalarBoolean
)

// ResolvedType is the emitted type of one field. The concrete variants are
// ScalarType, RefType, ArrayType and DynamicType; switch on Kind to handle
// them exhaustively.
type ResolvedType interface {
	Kind() Kind
}

// ScalarType is a primitive.
type ScalarType struct{ Scalar Scalar }

// RefType names another declaration of the same run.
type RefType struct{ Name string }

// ArrayType is a list of Elem.
type ArrayType struct{ Elem ResolvedType }

// DynamicType accepts any value. Unknown and incomplete type information
// resolves to it.
type DynamicType struct{}

func (ScalarType) Kind() Kind { return KindScalar }
func (RefType) Kind() Kind { return KindReference }
func (ArrayType) Kind() Kind { return KindArray }
func (DynamicType) Kind() Kind { return KindDynamic }

// scalarTags maps lower-case type tags onto scalars. The aliases beyond the
// documented enum (long, float, text, bool) are accepted for older documents.
var scalarTags = map[string]Scalar{
	"int":     ScalarNumber,
	"double":  ScalarNumber,
	"long":    ScalarNumber,
	"float":   ScalarNumber,
	"string":  ScalarString,
	"text":    ScalarString,
	"boolean": ScalarBoolean,
	"bool":    ScalarBoolean,
}

// ResolveScalar resolves a scalar type tag. Unknown tags yield DynamicType.
func ResolveScalar(tag string) ResolvedType {
	if s, ok := scalarTags[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return ScalarType{Scalar: s}
	}
	return DynamicType{}
}

// TypeScript renders t as a TypeScript type expression.
func TypeScript(t ResolvedType) string {
	switch v := t.(type) {
	case ScalarType:
		switch v.Scalar {
		case ScalarNumber:
			return "number"
		case ScalarString:
			return "string"
		case ScalarBoolean:
			return "boolean"
		}
	case RefType:
		return v.Name
	case ArrayType:
		return TypeScript(v.Elem) + "[]"
	case DynamicType:
		return "any"
	case nil:
		return "any"
	}
	panic(fmt.Sprintf("gen: unhandled type %T", t))
}
