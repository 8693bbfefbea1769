package gen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/camgen/internal/schema"
)

func TestEmitService_ScenarioMethod(t *testing.T) {
	t.Parallel()
	d := Assemble(getUserOp()).Descriptor
	c := EmitService("user", []OperationDescriptor{d})

	assert.Equal(t, "UserService", c.Name)
	assert.Equal(t, []string{"GetUser200Response", "GetUserPathRequest"}, c.Imports)
	assert.True(t, strings.HasPrefix(c.Source,
		"import type { GetUser200Response, GetUserPathRequest } from \"./namespaces\";\n\n"))
	assert.Contains(t, c.Source, "export default class UserService<T> {\n")
	assert.Contains(t, c.Source, `throw new Error("UserService.request is undefined");`)

	want := `  getUserGET(req: GetUserPathRequest, options?: T): Promise<GetUser200Response> {
    const _req: any = req || {};
    let path = "/users/{id}";
    if (_req["id"] !== undefined && _req["id"] !== null) {
      path = path.replace("{id}", () => String(_req["id"]));
    }
    const url = this.genBaseURL(path);
    const method: HttpMethod = "GET";
    const data = undefined;
    const params = undefined;
    const headers = undefined;
    return this.request({ url, method, data, params, headers }, options);
  }
`
	assert.Contains(t, c.Source, want)
	assert.Contains(t, c.Source, "   * GET /users/{id}\n")
}

func TestEmitService_Projections(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{
		Name:   "Search",
		Method: schema.MethodPost,
		Path:   "/search",
		RequestParams: map[schema.Location][]schema.ParamNode{
			schema.LocationBody:   {{Name: "term", Type: "string"}, {Name: "page-size", Type: "int"}},
			schema.LocationQuery:  {{Name: "debug", Type: "boolean"}},
			schema.LocationHeader: {{Name: "X-Trace", Type: "string"}},
		},
	}).Descriptor
	src := EmitService("search", []OperationDescriptor{d}).Source

	assert.Contains(t, src, "searchPOST(req: SearchBodyRequest & SearchQueryRequest & SearchHeaderRequest, options?: T): Promise<any> {")
	assert.Contains(t, src, `const path = "/search";`)
	assert.Contains(t, src, `const data = { "term": _req["term"], "page-size": _req["page-size"] };`)
	assert.Contains(t, src, `const params = { "debug": _req["debug"] };`)
	assert.Contains(t, src, `const headers = { "X-Trace": _req["X-Trace"] };`)
}

func TestEmitService_NoParams(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{Name: "health", Method: schema.MethodGet, Path: "/health"}).Descriptor
	c := EmitService("", []OperationDescriptor{d})
	assert.Equal(t, "ApiService", c.Name)
	assert.Empty(t, c.Imports)
	assert.True(t, strings.HasPrefix(c.Source, "export type HttpMethod = "))
	assert.Contains(t, c.Source, "healthGET(req?: any, options?: T): Promise<any> {")
}

func TestEmitService_MethodUnion(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{Name: "probe", Method: "HEAD", Path: "/"}).Descriptor
	src := EmitService("x", []OperationDescriptor{d}).Source
	assert.Contains(t, src, `export type HttpMethod = "GET" | "POST" | "PUT" | "DELETE" | "PATCH" | "HEAD";`)
}

func TestEmitService_DeprecatedDoc(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{
		Name: "old", Method: schema.MethodGet, Path: "/old",
		Description: "Legacy lookup.", Deprecated: true,
	}).Descriptor
	src := EmitService("x", []OperationDescriptor{d}).Source
	assert.Contains(t, src, "  /**\n   * Legacy lookup.\n   * GET /old\n   * @deprecated\n   */\n  oldGET(")
}

func TestEmitService_GenBaseURL(t *testing.T) {
	t.Parallel()
	src := EmitService("x", nil).Source
	require.Contains(t, src, "private genBaseURL(path: string): string {")
	assert.Contains(t, src, `this.baseURL.trim().replace(/\/+$/, "")`)
	assert.Contains(t, src, `path.trim().replace(/^\/+/, "")`)
	assert.Contains(t, src, "baseURL?: string | ((path: string) => string);")
}

func TestJSString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"a\"b\\c\n"`, jsString("a\"b\\c\n"))
	assert.Equal(t, `"\u0007"`, jsString("\a"))
	assert.Equal(t, `"héllo"`, jsString("héllo"))
}

func TestEmitService_MissingMethodSendsGET(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{Name: "ping", Path: "/ping"}).Descriptor
	src := EmitService("x", []OperationDescriptor{d}).Source
	assert.Contains(t, src, `export type HttpMethod = "GET" | "POST" | "PUT" | "DELETE" | "PATCH";`)
	assert.Contains(t, src, `const method: HttpMethod = "GET";`)
	assert.NotContains(t, src, `const method: HttpMethod = "";`)
	assert.Contains(t, src, "   * GET /ping\n")
}

func TestEmitService_PathValueIsLiteral(t *testing.T) {
	t.Parallel()
	d := Assemble(schema.OperationSchema{
		Name: "file", Method: schema.MethodGet, Path: "/files/{name}/{rev}",
		RequestParams: map[schema.Location][]schema.ParamNode{
			schema.LocationPath: {{Name: "name", Type: "string"}, {Name: "rev", Type: "int"}},
		},
	}).Descriptor
	src := EmitService("x", []OperationDescriptor{d}).Source
	// A replacer function keeps "$&" and "$1" in values from being expanded.
	assert.Contains(t, src, `path = path.replace("{name}", () => String(_req["name"]));`)
	assert.Contains(t, src, `path = path.replace("{rev}", () => String(_req["rev"]));`)
	assert.NotContains(t, src, `, String(_req[`)
}
