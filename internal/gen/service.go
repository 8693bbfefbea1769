package gen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/camgen/internal/schema"
)

// TypesModule is the module the service class imports its types from.
const TypesModule = "./namespaces"

// ServiceClass is the emitted client class of one service.
type ServiceClass struct {
	Name string
	// Source is the complete module text, import line included.
	Source string
	// Imports lists every interface referenced by a method signature, sorted.
	Imports []string
}

// ClassName is the name of the client class generated for a service.
func ClassName(service string) string { return TypeName(service, "Api") + "Service" }

// EmitService writes the client class for descriptors. Methods appear in
// descriptor order.
func EmitService(service string, descriptors []OperationDescriptor) ServiceClass {
	name := ClassName(service)
	imports := importSet(descriptors)

	var b strings.Builder
	if len(imports) > 0 {
		fmt.Fprintf(&b, "import type { %s } from %q;\n\n", strings.Join(imports, ", "), TypesModule)
	}
	fmt.Fprintf(&b, "export type HttpMethod = %s;\n\n", methodUnion(descriptors))
	b.WriteString("export interface RequestConfig {\n")
	b.WriteString("  url: string;\n")
	b.WriteString("  method: HttpMethod;\n")
	b.WriteString("  data?: any;\n")
	b.WriteString("  params?: any;\n")
	b.WriteString("  headers?: any;\n")
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "export default class %s<T> {\n", name)
	b.WriteString("  private request: <R>(config: RequestConfig, options?: T) => Promise<R> = () => {\n")
	fmt.Fprintf(&b, "    throw new Error(%s);\n", jsString(name+".request is undefined"))
	b.WriteString("  };\n")
	b.WriteString("  private baseURL: string | ((path: string) => string) = \"\";\n\n")
	b.WriteString("  constructor(options?: {\n")
	b.WriteString("    baseURL?: string | ((path: string) => string);\n")
	b.WriteString("    request?<R>(config: RequestConfig, options?: T): Promise<R>;\n")
	b.WriteString("  }) {\n")
	b.WriteString("    this.request = options?.request || this.request;\n")
	b.WriteString("    this.baseURL = options?.baseURL || this.baseURL;\n")
	b.WriteString("  }\n\n")
	b.WriteString("  private genBaseURL(path: string): string {\n")
	b.WriteString("    if (typeof this.baseURL === \"string\") {\n")
	b.WriteString("      const base = this.baseURL.trim().replace(/\\/+$/, \"\");\n")
	b.WriteString("      const rest = path.trim().replace(/^\\/+/, \"\");\n")
	b.WriteString("      return base + \"/\" + rest;\n")
	b.WriteString("    }\n")
	b.WriteString("    return this.baseURL(path);\n")
	b.WriteString("  }\n")
	for _, d := range descriptors {
		b.WriteString("\n")
		writeMethod(&b, d)
	}
	b.WriteString("}\n")

	return ServiceClass{Name: name, Source: b.String(), Imports: imports}
}

func importSet(descriptors []OperationDescriptor) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, d := range descriptors {
		for _, n := range d.TypeNames() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// methodUnion lists the standard verbs followed by any other method a
// descriptor uses, in first-use order.
func methodUnion(descriptors []OperationDescriptor) string {
	seen := map[string]bool{}
	var parts []string
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			parts = append(parts, jsString(m))
		}
	}
	for _, m := range schema.Methods {
		add(string(m))
	}
	for _, d := range descriptors {
		add(requestMethod(d))
	}
	return strings.Join(parts, " | ")
}

// requestMethod is the verb a method sends; operations without one send GET.
func requestMethod(d OperationDescriptor) string {
	if m := strings.ToUpper(strings.TrimSpace(string(d.Method))); m != "" {
		return m
	}
	return string(schema.MethodGet)
}

func writeMethod(b *strings.Builder, d OperationDescriptor) {
	b.WriteString(methodDoc(d))
	param := "req: " + d.RequestType
	if d.RequestOptional {
		param = "req?: " + d.RequestType
	}
	fmt.Fprintf(b, "  %s(%s, options?: T): Promise<%s> {\n", d.FunctionName, param, d.ResponseType)
	b.WriteString("    const _req: any = req || {};\n")
	path := d.Location(schema.LocationPath)
	if len(path.Fields) == 0 {
		fmt.Fprintf(b, "    const path = %s;\n", jsString(d.Path))
	} else {
		fmt.Fprintf(b, "    let path = %s;\n", jsString(d.Path))
		for _, f := range path.Fields {
			field := jsString(f)
			fmt.Fprintf(b, "    if (_req[%s] !== undefined && _req[%s] !== null) {\n", field, field)
			fmt.Fprintf(b, "      path = path.replace(%s, () => String(_req[%s]));\n", jsString("{"+f+"}"), field)
			b.WriteString("    }\n")
		}
	}
	b.WriteString("    const url = this.genBaseURL(path);\n")
	fmt.Fprintf(b, "    const method: HttpMethod = %s;\n", jsString(requestMethod(d)))
	fmt.Fprintf(b, "    const data = %s;\n", projection(d.Location(schema.LocationBody).Fields))
	fmt.Fprintf(b, "    const params = %s;\n", projection(d.Location(schema.LocationQuery).Fields))
	fmt.Fprintf(b, "    const headers = %s;\n", projection(d.Location(schema.LocationHeader).Fields))
	b.WriteString("    return this.request({ url, method, data, params, headers }, options);\n")
	b.WriteString("  }\n")
}

// projection renders an object literal copying fields off the request, or
// undefined when there are none.
func projection(fields []string) string {
	if len(fields) == 0 {
		return "undefined"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		key := jsString(f)
		parts = append(parts, fmt.Sprintf("%s: _req[%s]", key, key))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func methodDoc(d OperationDescriptor) string {
	var lines []string
	if desc := strings.TrimSpace(d.Description); desc != "" {
		lines = append(lines, strings.Split(strings.ReplaceAll(desc, "*/", "*\\/"), "\n")...)
	}
	lines = append(lines, requestMethod(d)+" "+d.Path)
	if d.Deprecated {
		lines = append(lines, "@deprecated")
	}
	var b strings.Builder
	b.WriteString("  /**\n")
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			b.WriteString("   *\n")
			continue
		}
		fmt.Fprintf(&b, "   * %s\n", l)
	}
	b.WriteString("   */\n")
	return b.String()
}

// jsString renders s as a double-quoted TypeScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f || r == 0x2028 || r == 0x2029 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
