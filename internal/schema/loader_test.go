package schema

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600))
	return path
}

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "file:///etc/hosts")
	var se *SourceError
	require.True(t, errors.As(err, &se), "expected SourceError, got %T", err)
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "ftp://example.com/spec.yaml")
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_EmptyInput(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "  ")
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, InputError, se.Code)
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, "http://127.0.0.1:1/spec.yaml", WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	var se *SourceError
	require.True(t, errors.As(err, &se), "expected SourceError, got %v", err)
	assert.Equal(t, NetworkError, se.Code)
}

func TestLoad_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"name":"ping","apis":[{"name":"ping","method":"GET","path":"/ping"}]}`))
	}))
	defer srv.Close()

	svc, err := Load(context.Background(), srv.URL+"/service.json", WithBackoffBase(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "ping", svc.Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoad_ServiceDocumentFile(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "user.yaml", `
name: user
apis:
  - name: getUser
    method: GET
    path: /users/{id}
    request_params_by_location:
      path:
        - {name: id, type: int, required: true}
`)
	svc, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, svc.Operations, 1)
	assert.Equal(t, "getUser", svc.Operations[0].Name)
}

func TestLoad_UnrecognizedDocument(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "other.yaml", `kind: Deployment`)
	_, err := Load(context.Background(), path)
	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ParseError, se.Code)
	assert.NotEmpty(t, se.Location)
}

func TestLoad_V3_InvalidSpec(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bad.yaml", `openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses: {}
`)
	_, err := Load(context.Background(), path)
	var se *SourceError
	require.True(t, errors.As(err, &se), "expected SourceError, got %T", err)
	assert.Contains(t, []ErrorCode{ValidationError, ParseError}, se.Code)
	assert.NotEmpty(t, se.Location)
}

func TestLoad_V2_Conversion_Success(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "swagger.yaml", `swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello":
    get:
      parameters:
        - {in: query, name: who, type: string}
      responses:
        200:
          description: ok
          schema:
            type: object
            properties:
              greeting: {type: string}
`)
	svc, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Sample", svc.Name)
	require.Len(t, svc.Operations, 1)
	op := svc.Operations[0]
	assert.Equal(t, "getHello", op.Name)
	require.Len(t, op.Request(LocationQuery), 1)
	assert.Equal(t, "who", op.Request(LocationQuery)[0].Name)
	require.Len(t, op.ResponseParams[200], 1)
	assert.Equal(t, "greeting", op.ResponseParams[200][0].Name)
}

func TestLoad_V2_Conversion_Failure(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "swagger-bad.yaml", `swagger: "2.0"
paths: {}
`)
	_, err := Load(context.Background(), path)
	var se *SourceError
	require.True(t, errors.As(err, &se), "expected SourceError, got %T", err)
	assert.Contains(t, []ErrorCode{ConversionError, ValidationError, ParseError}, se.Code)
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: `openapi: 3.0.1`, want: FormatOpenAPI3},
		{in: `{"swagger": "2.0"}`, want: FormatSwagger2},
		{in: `{"apis": []}`, want: FormatService},
		{in: `{"method": "GET", "path": "/x"}`, want: FormatService},
		{in: `{"kind": "Pod"}`, want: FormatUnknown},
		{in: `openapi: 2.5`, wantErr: true},
		{in: `[unclosed`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := DetectFormat([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
