package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ServiceDocument(t *testing.T) {
	t.Parallel()
	in := []byte(`{
  "name": "user",
  "service_uuid": "u-1",
  "version": "1.0.0",
  "description": "user service",
  "apis": [
    {
      "name": "getUser",
      "method": "get",
      "path": "/users/{id}",
      "request_params_by_location": {
        "path": [{"name": "id", "type": "int", "required": true, "description": "user id"}]
      },
      "response_params_by_status_code": {
        "200": [{"name": "username", "type": "string", "required": true}]
      }
    }
  ]
}`)
	svc, err := Decode(in)
	require.NoError(t, err)
	assert.Equal(t, "user", svc.Name)
	assert.Equal(t, "u-1", svc.UUID)
	assert.Equal(t, "1.0.0", svc.Version)
	require.Len(t, svc.Operations, 1)

	op := svc.Operations[0]
	assert.Equal(t, MethodGet, op.Method)
	assert.Equal(t, "/users/{id}", op.Path)
	require.Len(t, op.Request(LocationPath), 1)
	id := op.Request(LocationPath)[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, TypeInt, id.Type)
	assert.True(t, id.Required)
	assert.Equal(t, "user id", id.Description)
	assert.Equal(t, []int{200}, op.StatusCodes())
	assert.Equal(t, "username", op.ResponseParams[200][0].Name)
}

func TestDecode_SingleAPIWithFlatRows(t *testing.T) {
	t.Parallel()
	in := []byte(`
name: createOrder
method: POST
path: /orders
is_enabled: false
request_params:
  - {id: 1, location: body, name: items, type: array, array_child_type: object}
  - {id: 2, parent_param_id: 1, location: body, name: sku, type: string, required: true}
  - {id: 3, parent_param_id: 99, location: body, name: orphan, type: string}
  - {id: 4, location: query, name: dryRun, type: boolean}
response_params:
  - {id: 10, status_code: 201, name: id, type: int}
  - {id: 11, parent_param_id: 0, status_code: "400", name: reason, type: string}
`)
	svc, err := Decode(in)
	require.NoError(t, err)
	assert.Equal(t, "createOrder", svc.Name)
	require.Len(t, svc.Operations, 1)
	op := svc.Operations[0]
	assert.True(t, op.Deprecated)

	body := op.Request(LocationBody)
	require.Len(t, body, 1, "orphan rows are dropped")
	assert.Equal(t, "items", body[0].Name)
	assert.Equal(t, TypeObject, body[0].ArrayChildType)
	require.Len(t, body[0].Children, 1)
	assert.Equal(t, "sku", body[0].Children[0].Name)
	assert.True(t, body[0].Children[0].Required)

	require.Len(t, op.Request(LocationQuery), 1)
	assert.Equal(t, TypeBoolean, op.Request(LocationQuery)[0].Type)

	assert.Equal(t, []int{201, 400}, op.StatusCodes())
	assert.Equal(t, "reason", op.ResponseParams[400][0].Name)
}

func TestDecode_Envelope(t *testing.T) {
	t.Parallel()
	in := []byte(`{"status": 200, "message": "ok", "service": {"service_uuid": "abc", "version": 2, "apis": []}}`)
	svc, err := Decode(in)
	require.NoError(t, err)
	assert.Equal(t, "abc", svc.UUID)
	assert.Equal(t, "2", svc.Version)
	assert.Empty(t, svc.Operations)
}

func TestDecode_PermissiveScalars(t *testing.T) {
	t.Parallel()
	in := []byte(`
name: search
method: get
path: /search
request_params_by_location:
  QUERY:
    - name: limit
      type: INT
      example: 42
      default_value: null
    - name: filters
      type: object
      children:
        - {name: since, type: string}
`)
	svc, err := Decode(in)
	require.NoError(t, err)
	q := svc.Operations[0].Request(LocationQuery)
	require.Len(t, q, 2)
	assert.Equal(t, TypeInt, q[0].Type)
	assert.Equal(t, "42", q[0].Example)
	assert.Equal(t, "", q[0].DefaultValue)
	require.Len(t, q[1].Children, 1)
	assert.Equal(t, "since", q[1].Children[0].Name)
}

func TestDecode_UnknownTypePreserved(t *testing.T) {
	t.Parallel()
	in := []byte(`{"name":"x","method":"get","path":"/x","request_params_by_location":{"query":[{"name":"when","type":"datetime"}]}}`)
	svc, err := Decode(in)
	require.NoError(t, err)
	assert.Equal(t, ParamType("datetime"), svc.Operations[0].Request(LocationQuery)[0].Type)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
	}{
		{name: "not a mapping", in: `[1, 2, 3]`},
		{name: "bad status code", in: `{"name":"x","method":"get","path":"/x","response_params_by_status_code":{"ok":[]}}`},
		{name: "bad row status", in: `{"name":"x","method":"get","path":"/x","response_params":[{"id":1,"status_code":"abc","name":"a","type":"string"}]}`},
		{name: "malformed", in: `{"apis": [`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.in))
			assert.Error(t, err)
		})
	}
}
