package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceBody = `{
  "status": 200,
  "message": "ok",
  "service": {
    "service_uuid": "u-1",
    "version": "1.0.0",
    "description": "Users",
    "apis": [
      {
        "name": "GetUser",
        "method": "get",
        "path": "/users/{id}",
        "request_params_by_location": {
          "path": [{"name": "id", "type": "int", "required": true}]
        },
        "response_params_by_status_code": {
          "200": [{"name": "username", "type": "string", "required": true}]
        }
      }
    ]
  }
}`

func TestGetService(t *testing.T) {
	t.Parallel()
	var gotAuth, gotPath, gotUUID, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotUUID = r.URL.Query().Get("service_uuid")
		gotVersion = r.URL.Query().Get("version")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(serviceBody))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", WithToken("secret"))
	require.NoError(t, err)
	svc, err := c.GetService(context.Background(), "u-1", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/v1/service/getServiceByUuidAndVersion", gotPath)
	assert.Equal(t, "u-1", gotUUID)
	assert.Equal(t, "1.0.0", gotVersion)

	assert.Equal(t, "u-1", svc.UUID)
	assert.Equal(t, "1.0.0", svc.Version)
	require.Len(t, svc.Operations, 1)
	op := svc.Operations[0]
	assert.Equal(t, "GET", string(op.Method))
	assert.Len(t, op.RequestParams["path"], 1)
	assert.Equal(t, "username", op.ResponseParams[200][0].Name)
}

func TestGetService_EnvelopeStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": 404, "message": "service not found"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.GetService(context.Background(), "nope", "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, "service not found", se.Message)
}

func TestGetService_HTTPStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status": 401, "message": "token expired"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.GetService(context.Background(), "u-1", "latest")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "token expired", se.Message)
}

func TestGetService_RetriesTransient(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(serviceBody))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	svc, err := c.GetService(context.Background(), "u-1", "1.0.0")
	require.NoError(t, err)
	assert.Len(t, svc.Operations, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServer, c.BaseURL())

	_, err = New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("not a url")
	assert.Error(t, err)
}

func TestParseRef(t *testing.T) {
	t.Parallel()
	r, err := ParseRef("3f1c-88@1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Ref{UUID: "3f1c-88", Version: "1.2.3"}, r)
	assert.Equal(t, "3f1c-88@1.2.3", r.String())

	r, err = ParseRef("3f1c-88")
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, r.Version)

	for _, bad := range []string{"", "@1.0.0", "abc@1.0", "abc@v1.0.0", "a/b@1.0.0"} {
		_, err := ParseRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsRef(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRef("3f1c@1.0.0"))
	assert.True(t, IsRef("3f1c@latest"))
	assert.False(t, IsRef("./svc.yaml"))
	assert.False(t, IsRef("svc.yaml"))
	assert.False(t, IsRef("https://x/y@1"))
	assert.False(t, IsRef("spec@v2.yaml"))
	assert.False(t, IsRef(""))
}
