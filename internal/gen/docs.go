package gen

import (
	"fmt"
	"strings"

	"github.com/mark3labs/camgen/internal/schema"
)

// GeneratedHeader opens every generated TypeScript module.
const GeneratedHeader = "// Code generated by camgen. DO NOT EDIT.\n"

// TypesModuleSource is the namespaces module of a service.
func (o ServiceOutput) TypesModuleSource() string {
	if len(o.Declarations) == 0 {
		return GeneratedHeader + "\nexport {};\n"
	}
	return GeneratedHeader + "\n" + o.TypesSource()
}

// ClassModuleSource is the index module of a service.
func (o ServiceOutput) ClassModuleSource() string {
	return GeneratedHeader + "\n" + o.Class.Source
}

// DemoSource shows how to wire the generated class of dir to axios and to
// fetch. dir is the service directory relative to the demo file.
func DemoSource(className, dir string) string {
	var b strings.Builder
	b.WriteString(GeneratedHeader)
	b.WriteString("// Wiring examples for a generated service class. Any transport that\n")
	b.WriteString("// accepts { url, method, data, params, headers } works.\n\n")
	b.WriteString("import axios, { type AxiosRequestConfig } from \"axios\";\n")
	fmt.Fprintf(&b, "import %s from %s;\n\n", className, jsString("./"+strings.TrimPrefix(dir, "./")+"/index"))
	b.WriteString("const BASE_URL = \"http://localhost:3000\";\n\n")
	fmt.Fprintf(&b, "export const demoServiceForAxios = new %s<AxiosRequestConfig>({\n", className)
	b.WriteString("  baseURL: BASE_URL,\n")
	b.WriteString("  request: (config, options) =>\n")
	b.WriteString("    axios.request({ ...options, ...config }).then((res) => res.data),\n")
	b.WriteString("});\n\n")
	fmt.Fprintf(&b, "export const demoServiceForFetch = new %s<RequestInit>({\n", className)
	b.WriteString("  baseURL: BASE_URL,\n")
	b.WriteString("  request: (config, options) => {\n")
	b.WriteString("    const query = config.params ? \"?\" + new URLSearchParams(config.params).toString() : \"\";\n")
	b.WriteString("    return fetch(config.url + query, {\n")
	b.WriteString("      ...options,\n")
	b.WriteString("      method: config.method,\n")
	b.WriteString("      headers: config.headers,\n")
	b.WriteString("      body: config.data === undefined ? undefined : JSON.stringify(config.data),\n")
	b.WriteString("    }).then((res) => res.json());\n")
	b.WriteString("  },\n")
	b.WriteString("});\n")
	return b.String()
}

// ReadmeSource documents the generated service: one section per operation
// with its signature and an example path built from parameter examples.
func ReadmeSource(svc *schema.ServiceSchema, out ServiceOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", out.ClassName)
	if d := strings.TrimSpace(svc.Description); d != "" {
		b.WriteString(d + "\n\n")
	}
	if svc.UUID != "" || svc.Version != "" {
		fmt.Fprintf(&b, "Source: `%s@%s`\n\n", svc.UUID, svc.Version)
	}
	b.WriteString("Generated by camgen. Do not edit by hand; regenerate instead.\n\n")
	b.WriteString("```ts\n")
	fmt.Fprintf(&b, "import %s from \"./index\";\n\n", out.ClassName)
	fmt.Fprintf(&b, "const api = new %s({ baseURL: \"https://api.example.com\", request });\n", out.ClassName)
	b.WriteString("```\n\n")
	b.WriteString("## Operations\n")

	for i, d := range out.Descriptors {
		b.WriteString("\n")
		fmt.Fprintf(&b, "### `%s`\n\n", d.FunctionName)
		if d.Deprecated {
			b.WriteString("**Deprecated.**\n\n")
		}
		if desc := strings.TrimSpace(d.Description); desc != "" {
			b.WriteString(desc + "\n\n")
		}
		fmt.Fprintf(&b, "`%s %s`\n\n", requestMethod(d), d.Path)
		param := "req: " + d.RequestType
		if d.RequestOptional {
			param = "req?: " + d.RequestType
		}
		fmt.Fprintf(&b, "- Signature: `%s(%s, options?: T): Promise<%s>`\n", d.FunctionName, param, d.ResponseType)
		if i < len(svc.Operations) {
			path := d.Location(schema.LocationPath)
			if len(path.Fields) > 0 {
				examples := exampleValues(svc.Operations[i].Request(schema.LocationPath))
				fmt.Fprintf(&b, "- Example path: `%s`\n", ExpandPath(d.Path, path.Fields, examples))
			}
		}
	}
	return b.String()
}

func exampleValues(params []schema.ParamNode) map[string]any {
	out := map[string]any{}
	for _, p := range params {
		if p.Example != "" {
			out[p.Name] = p.Example
		}
	}
	return out
}
