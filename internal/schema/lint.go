package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Severity ranks a lint diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one lint finding. Path addresses the offending element, for
// example "apis[2].request.body.items[].id".
type Diagnostic struct {
	Severity Severity
	Path     string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Severity, d.Path, d.Message)
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Lint reports problems that generation tolerates but that usually point at
// a broken document. It never mutates svc.
func Lint(svc *ServiceSchema) []Diagnostic {
	l := &linter{}
	type opKey struct {
		name   string
		method HTTPMethod
	}
	seen := map[opKey]int{}
	for i, op := range svc.Operations {
		at := fmt.Sprintf("apis[%d]", i)
		if op.Name != "" {
			at = fmt.Sprintf("apis[%d](%s)", i, op.Name)
		}
		l.structErrors(at, op, SeverityError)

		k := opKey{op.Name, op.Method}
		if prev, dup := seen[k]; dup && op.Name != "" {
			l.add(SeverityError, at, fmt.Sprintf("duplicate operation %s %s (first declared at apis[%d])", op.Method, op.Name, prev))
		} else {
			seen[k] = i
		}

		var unknown []string
		for loc := range op.RequestParams {
			if !KnownLocation(loc) {
				unknown = append(unknown, string(loc))
			}
		}
		sort.Strings(unknown)
		for _, loc := range unknown {
			l.add(SeverityWarning, at+".request."+loc, "unknown location; its parameters are not generated")
		}
		for _, loc := range Locations {
			l.params(at+".request."+string(loc), op.Request(loc))
		}
		for _, code := range op.StatusCodes() {
			l.params(fmt.Sprintf("%s.response.%d", at, code), op.ResponseParams[code])
		}
		l.placeholders(at, op)
		l.overlaps(at, op)
	}
	return l.diags
}

type linter struct {
	diags []Diagnostic
}

func (l *linter) add(sev Severity, path, msg string) {
	l.diags = append(l.diags, Diagnostic{Severity: sev, Path: path, Message: msg})
}

func (l *linter) structErrors(at string, v any, sev Severity) {
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	for _, fe := range verrs {
		l.add(sev, at+"."+fe.Field(), describeFieldError(fe))
	}
}

func (l *linter) params(at string, params []ParamNode) {
	names := map[string]bool{}
	for i, p := range params {
		here := fmt.Sprintf("%s[%d]", at, i)
		if p.Name != "" {
			here = at + "." + p.Name
		}
		l.structErrors(here, p, SeverityWarning)
		if p.Name != "" {
			if names[p.Name] {
				l.add(SeverityError, here, "duplicate field name")
			}
			names[p.Name] = true
		}
		if p.IsArray() && p.ArrayChildType != "" && !KnownType(p.ArrayChildType) {
			l.add(SeverityWarning, here+".array_child_type", fmt.Sprintf("unknown type %q; elements become any", p.ArrayChildType))
		}
		nested := p.IsObject() || (p.IsArray() && (p.ArrayChildType == TypeObject || p.ArrayChildType == TypeArray))
		if len(p.Children) > 0 && !nested {
			l.add(SeverityWarning, here, fmt.Sprintf("children on a %s field are ignored", p.Type))
		}
		if nested {
			child := here
			if p.IsArray() {
				child += "[]"
			}
			l.params(child, p.Children)
		}
	}
}

// placeholders checks that every {name} in the path has a path parameter and
// every path parameter has a placeholder.
func (l *linter) placeholders(at string, op OperationSchema) {
	inPath := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(op.Path, -1) {
		inPath[m[1]] = true
	}
	declared := map[string]bool{}
	for _, p := range op.Request(LocationPath) {
		declared[p.Name] = true
		if !inPath[p.Name] {
			l.add(SeverityWarning, at+".request.path."+p.Name, fmt.Sprintf("path %q has no {%s} placeholder", op.Path, p.Name))
		}
	}
	missing := make([]string, 0)
	for name := range inPath {
		if !declared[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	for _, name := range missing {
		l.add(SeverityWarning, at+".path", fmt.Sprintf("placeholder {%s} has no path parameter", name))
	}
}

// overlaps flags field names shared by several request locations. The
// generated client reads every location from one request object, so such
// fields collapse into a single value.
func (l *linter) overlaps(at string, op OperationSchema) {
	owners := map[string][]string{}
	for _, loc := range Locations {
		for _, p := range op.Request(loc) {
			if p.Name != "" {
				owners[p.Name] = append(owners[p.Name], string(loc))
			}
		}
	}
	names := make([]string, 0, len(owners))
	for name, locs := range owners {
		if len(locs) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		l.add(SeverityWarning, at+".request", fmt.Sprintf("field %q appears in %s; the generated client sends one value to all of them", name, strings.Join(owners[name], ", ")))
	}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when type is array"
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fe.Value()), fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
