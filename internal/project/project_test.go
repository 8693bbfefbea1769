package project

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `# project settings
outDir: ./src/services
# registered services
services:
  user: 3f1c@1.0.0 # user center
  local: ./schemas/orders.yaml
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_ServicesAndNames(t *testing.T) {
	t.Parallel()
	f, err := Load(writeFile(t, DefaultFile, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "user"}, f.Names())
	src, ok := f.Service("user")
	assert.True(t, ok)
	assert.Equal(t, "3f1c@1.0.0", src)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_BadServices(t *testing.T) {
	t.Parallel()
	_, err := Load(writeFile(t, DefaultFile, "services: [a, b]\n"))
	assert.Error(t, err)
}

func TestAddRemove_PreservesComments(t *testing.T) {
	t.Parallel()
	path := writeFile(t, DefaultFile, sampleYAML)
	f, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, f.AddService("billing", "9a9a@latest"))
	require.NoError(t, f.RemoveService("local"))
	require.NoError(t, f.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "# project settings")
	assert.Contains(t, s, "# user center")
	assert.Contains(t, s, "billing: 9a9a@latest")
	assert.NotContains(t, s, "orders.yaml")

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "user"}, again.Names())
}

func TestAddService_Rejections(t *testing.T) {
	t.Parallel()
	f, err := Load(writeFile(t, DefaultFile, sampleYAML))
	require.NoError(t, err)

	assert.ErrorIs(t, f.AddService("user", "ffff@1.0.0"), ErrDuplicateName)
	assert.ErrorIs(t, f.AddService("user2", "3f1c@2.0.0"), ErrDuplicateUUID)
	assert.Error(t, f.AddService("a/b", "x.yaml"))
	assert.Error(t, f.AddService("..", "x.yaml"))
	assert.Error(t, f.AddService("ok", ""))
	assert.Error(t, f.AddService("bad-version", "abcd@1.0"))
	assert.ErrorIs(t, f.RemoveService("ghost"), ErrNotFound)
}

func TestNewFile_CreatesServices(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)
	f := New(path)
	assert.Empty(t, f.Names())
	require.NoError(t, f.AddService("user", "3f1c@1.0.0"))
	require.NoError(t, f.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "services:\n  user: 3f1c@1.0.0\n", string(data))
}

func TestLoad_NullServices(t *testing.T) {
	t.Parallel()
	f, err := Load(writeFile(t, DefaultFile, "outDir: out\nservices:\n"))
	require.NoError(t, err)
	assert.Empty(t, f.Names())
	require.NoError(t, f.AddService("user", "3f1c@1.0.0"))
	assert.Equal(t, []string{"user"}, f.Names())
}

func TestJSONFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := writeFile(t, JSONFile, `{"outDir": "out", "services": {"user": "3f1c@1.0.0"}}`)
	f, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, f.AddService("billing", "77@2.1.0"))
	require.NoError(t, f.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \""))
	var v struct {
		OutDir   string            `json:"outDir"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, "out", v.OutDir)
	assert.Equal(t, map[string]string{"user": "3f1c@1.0.0", "billing": "77@2.1.0"}, v.Services)
}

func TestFind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, ok := Find(dir)
	assert.False(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(dir, JSONFile), []byte("{}"), 0o600))
	p, ok := Find(dir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, JSONFile), p)
}
