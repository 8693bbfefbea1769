package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleService() *ServiceSchema {
	return &ServiceSchema{
		Name:    "user",
		Version: "1.2.0",
		Operations: []OperationSchema{
			{
				Name:   "getUser",
				Method: MethodGet,
				Path:   "/users/{id}",
				Tags:   []string{"users"},
				RequestParams: map[Location][]ParamNode{
					LocationPath:  {{Name: "id", Type: TypeInt, Required: true}},
					LocationQuery: {{Name: "expand", Type: TypeBoolean, DefaultValue: "true"}},
				},
				ResponseParams: map[int][]ParamNode{
					200: {
						{Name: "profile", Type: TypeObject, Children: []ParamNode{{Name: "age", Type: TypeInt}}},
						{Name: "username", Type: TypeString, Required: true},
					},
					404: {{Name: "reason", Type: TypeString}},
				},
			},
			{
				Name:   "create_user",
				Method: MethodPost,
				Path:   "/users",
				RequestParams: map[Location][]ParamNode{
					LocationBody: {
						{Name: "avatar", Type: TypeBinary},
						{Name: "roles", Type: TypeArray, ArrayChildType: TypeObject, Children: []ParamNode{{Name: "code", Type: TypeString, Required: true}}},
						{Name: "score", Type: TypeDouble, DefaultValue: "null"},
					},
				},
			},
		},
	}
}

func TestToOpenAPI_Components(t *testing.T) {
	t.Parallel()
	doc := ToOpenAPI(sampleService())
	assert.Equal(t, OpenAPIVersion, doc.OpenAPI)
	assert.Equal(t, "user", doc.Info.Title)
	assert.Equal(t, "1.2.0", doc.Info.Version)

	for _, name := range []string{"GetUserResponse", "GetUserResponse404", "CreateUserRequest"} {
		assert.Contains(t, doc.Components.Schemas, name)
	}

	get := doc.Paths["/users/{id}"].Get
	require.NotNil(t, get)
	assert.Equal(t, "getUser", get.OperationID)
	require.Len(t, get.Parameters, 2)
	assert.Equal(t, "expand", get.Parameters[0].Value.Name)
	assert.Equal(t, true, get.Parameters[0].Value.Schema.Value.Default)
	assert.Equal(t, "id", get.Parameters[1].Value.Name)
	assert.Equal(t, "integer", get.Parameters[1].Value.Schema.Value.Type)
	assert.Equal(t, "#/components/schemas/GetUserResponse", get.Responses["200"].Value.Content["application/json"].Schema.Ref)

	post := doc.Paths["/users"].Post
	require.NotNil(t, post)
	require.NotNil(t, post.RequestBody)
	body := doc.Components.Schemas["CreateUserRequest"].Value
	assert.Equal(t, "binary", body.Properties["avatar"].Value.Format)
	assert.Equal(t, "object", body.Properties["roles"].Value.Items.Value.Type)
	assert.Equal(t, []string{"code"}, body.Properties["roles"].Value.Items.Value.Required)
	assert.Nil(t, body.Properties["score"].Value.Default)
}

func TestToOpenAPI_RoundTrip(t *testing.T) {
	t.Parallel()
	in := sampleService()
	out := FromOpenAPI(ToOpenAPI(in))
	require.Len(t, out.Operations, 2)

	// Paths sort "/users" before "/users/{id}".
	create, get := out.Operations[0], out.Operations[1]
	assert.Equal(t, "create_user", create.Name)
	assert.Equal(t, in.Operations[1].Request(LocationBody)[1].Children, create.Request(LocationBody)[1].Children)
	assert.Equal(t, TypeBinary, create.Request(LocationBody)[0].Type)

	assert.Equal(t, "getUser", get.Name)
	assert.Equal(t, []int{200, 404}, get.StatusCodes())
	assert.Equal(t, "username", get.ResponseParams[200][1].Name)
	assert.True(t, get.ResponseParams[200][1].Required)
	assert.Equal(t, TypeInt, get.ResponseParams[200][0].Children[0].Type)
}

func TestMarshalOpenAPI(t *testing.T) {
	t.Parallel()
	doc := ToOpenAPI(sampleService())

	y, err := MarshalOpenAPI(doc, "out/openapi.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(y), "openapi: 3.1.0")
	assert.False(t, strings.Contains(string(y), `{"`), "block style expected")

	j, err := MarshalOpenAPI(doc, "openapi.JSON")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(j, &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])

	again, err := MarshalOpenAPI(ToOpenAPI(sampleService()), "out/openapi.yaml")
	require.NoError(t, err)
	assert.Equal(t, string(y), string(again), "output is deterministic")
}

func TestComponentName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"getUser":     "GetUser",
		"get_user":    "GetUser",
		"get-user-v2": "GetUserV2",
		"HTTPStatus":  "HTTPStatus",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ComponentName(in), in)
	}
}
