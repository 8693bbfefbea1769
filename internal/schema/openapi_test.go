package schema

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `
openapi: 3.0.3
info: {title: Pets, version: "1.0"}
paths:
  /pets/{petId}:
    parameters:
      - {name: petId, in: path, required: true, schema: {type: integer}}
    get:
      operationId: getPet
      tags: [pets]
      summary: Fetch one pet
      parameters:
        - {name: verbose, in: query, schema: {type: boolean}}
        - {name: X-Trace, in: header, schema: {type: string}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Pet'}
        default:
          description: error
  /pets:
    post:
      tags: [admin]
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Pet'}
      responses:
        "201": {description: created}
    get:
      operationId: listPets
      tags: [pets]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items: {$ref: '#/components/schemas/Pet'}
components:
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name: {type: string, example: Rex}
        weight: {type: number, default: 1.5}
        photo: {type: string, format: binary}
        tags: {type: array, items: {type: string}}
        owner:
          type: object
          properties:
            id: {type: integer}
`

func loadPetstore(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(petstore))
	require.NoError(t, err)
	return doc
}

func TestFromOpenAPI_Operations(t *testing.T) {
	t.Parallel()
	svc := FromOpenAPI(loadPetstore(t))
	assert.Equal(t, "Pets", svc.Name)
	assert.Equal(t, "1.0", svc.Version)

	require.Len(t, svc.Operations, 3)
	assert.Equal(t, "listPets", svc.Operations[0].Name)
	assert.Equal(t, "postPets", svc.Operations[1].Name)
	assert.Equal(t, "getPet", svc.Operations[2].Name)

	get := svc.Operations[2]
	assert.Equal(t, MethodGet, get.Method)
	assert.Equal(t, "Fetch one pet", get.Description)
	require.Len(t, get.Request(LocationPath), 1)
	assert.Equal(t, ParamNode{Name: "petId", Type: TypeInt, Required: true}, get.Request(LocationPath)[0])
	require.Len(t, get.Request(LocationQuery), 1)
	assert.Equal(t, TypeBoolean, get.Request(LocationQuery)[0].Type)
	require.Len(t, get.Request(LocationHeader), 1)
	assert.Equal(t, "X-Trace", get.Request(LocationHeader)[0].Name)
	assert.Equal(t, []int{200}, get.StatusCodes(), "non-numeric codes are skipped")

	pet := get.ResponseParams[200]
	names := make([]string, 0, len(pet))
	for _, p := range pet {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"name", "owner", "photo", "tags", "weight"}, names)
	assert.True(t, pet[0].Required)
	assert.Equal(t, "Rex", pet[0].Example)
	assert.Equal(t, TypeObject, pet[1].Type)
	require.Len(t, pet[1].Children, 1)
	assert.Equal(t, TypeInt, pet[1].Children[0].Type)
	assert.Equal(t, TypeBinary, pet[2].Type)
	assert.Equal(t, TypeArray, pet[3].Type)
	assert.Equal(t, TypeString, pet[3].ArrayChildType)
	assert.Equal(t, TypeDouble, pet[4].Type)
	assert.Equal(t, "1.5", pet[4].DefaultValue)
}

func TestFromOpenAPI_BodiesAndNonObjectPayloads(t *testing.T) {
	t.Parallel()
	svc := FromOpenAPI(loadPetstore(t))

	post := svc.Operations[1]
	assert.Len(t, post.Request(LocationBody), 5)
	assert.Equal(t, []int{201}, post.StatusCodes())
	assert.Empty(t, post.ResponseParams[201])

	list := svc.Operations[0]
	require.Len(t, list.ResponseParams[200], 1)
	data := list.ResponseParams[200][0]
	assert.Equal(t, "data", data.Name)
	assert.Equal(t, TypeArray, data.Type)
	assert.Equal(t, TypeObject, data.ArrayChildType)
	assert.Len(t, data.Children, 5)
}

func TestFromOpenAPI_Filters(t *testing.T) {
	t.Parallel()
	doc := loadPetstore(t)

	svc := FromOpenAPI(doc, WithIncludeTags([]string{"pets"}))
	assert.Len(t, svc.Operations, 2)

	svc = FromOpenAPI(doc, WithExcludeTags([]string{"pets"}))
	require.Len(t, svc.Operations, 1)
	assert.Equal(t, "postPets", svc.Operations[0].Name)

	svc = FromOpenAPI(doc, WithMethods([]HTTPMethod{"post"}))
	require.Len(t, svc.Operations, 1)

	svc = FromOpenAPI(doc, WithPathPatterns([]string{`\{petId\}$`}), WithServiceName("animals"))
	require.Len(t, svc.Operations, 1)
	assert.Equal(t, "animals", svc.Name)

	svc = FromOpenAPI(doc, WithPathPatterns([]string{`(`}))
	assert.Empty(t, svc.Operations, "invalid patterns match nothing")
}

func TestFilter_ServiceDocument(t *testing.T) {
	t.Parallel()
	svc := &ServiceSchema{
		Name: "user",
		Operations: []OperationSchema{
			{Name: "list", Method: MethodGet, Path: "/users", Tags: []string{"read"}},
			{Name: "create", Method: MethodPost, Path: "/users", Tags: []string{"write"}},
			{Name: "audit", Method: MethodGet, Path: "/admin/audit", Tags: []string{"internal"}},
		},
	}

	out := Filter(svc)
	assert.Len(t, out.Operations, 3)
	assert.Equal(t, "user", out.Name)

	out = Filter(svc, WithExcludeTags([]string{"internal"}), WithMethods([]HTTPMethod{"get"}), WithServiceName("people"))
	require.Len(t, out.Operations, 1)
	assert.Equal(t, "list", out.Operations[0].Name)
	assert.Equal(t, "people", out.Name)

	out = Filter(svc, WithPathPatterns([]string{"^/admin"}))
	require.Len(t, out.Operations, 1)
	assert.Equal(t, "audit", out.Operations[0].Name)

	assert.Len(t, svc.Operations, 3, "input is not mutated")
	assert.Equal(t, "user", svc.Name)
}

func TestFromOpenAPI_RecursiveSchemaIsCut(t *testing.T) {
	t.Parallel()
	node := &openapi3.Schema{Type: "object", Properties: openapi3.Schemas{}}
	node.Properties["next"] = openapi3.NewSchemaRef("", node)
	doc := &openapi3.T{
		Info: &openapi3.Info{Title: "loop"},
		Paths: openapi3.Paths{"/list": &openapi3.PathItem{Get: &openapi3.Operation{
			OperationID: "walk",
			Responses: openapi3.Responses{"200": &openapi3.ResponseRef{Value: &openapi3.Response{
				Content: openapi3.NewContentWithJSONSchema(node),
			}}},
		}}},
	}
	svc := FromOpenAPI(doc)
	require.Len(t, svc.Operations, 1)

	depth := 0
	params := svc.Operations[0].ResponseParams[200]
	for len(params) > 0 {
		depth++
		params = params[0].Children
	}
	assert.LessOrEqual(t, depth, maxSchemaDepth+1)
}

func TestDeriveOperationName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "getUsersId", deriveOperationName(MethodGet, "/users/{id}"))
	assert.Equal(t, "deleteV1OrderItems", deriveOperationName(MethodDelete, "/v1/order-items"))
	assert.Equal(t, "post", deriveOperationName(MethodPost, "/"))
}
