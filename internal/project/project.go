// Package project reads and edits the camgen project file, which names the
// services a project generates clients for alongside the generate options.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/camgen/internal/remote"
)

// Default project file names, in lookup order.
const (
	DefaultFile = "cam.config.yaml"
	JSONFile    = "cam.config.json"
)

const servicesKey = "services"

var (
	ErrDuplicateName = errors.New("service name already exists")
	ErrDuplicateUUID = errors.New("service uuid already exists")
	ErrNotFound      = errors.New("service does not exist")
)

// File is a loaded project file. Edits keep the comments and key order of
// YAML files.
type File struct {
	Path string
	doc  yaml.Node
}

// Find returns the first default project file present in dir.
func Find(dir string) (string, bool) {
	for _, name := range []string{DefaultFile, JSONFile} {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && st.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// New returns an empty project file that will be written to path.
func New(path string) *File {
	f := &File{Path: path}
	f.doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	return f
}

// Load reads path. A missing file yields an error matching fs.ErrNotExist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := New(path)
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse project file %q: %w", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse project file %q: expected a mapping at the top level", path)
	}
	f.doc = doc
	if svc := f.lookup(servicesKey); svc != nil && svc.Kind != yaml.MappingNode && svc.Tag != "!!null" {
		return nil, fmt.Errorf("project file %q: %q must be a mapping of name to source", path, servicesKey)
	}
	return f, nil
}

func (f *File) mapping() *yaml.Node { return f.doc.Content[0] }

func (f *File) lookup(key string) *yaml.Node {
	m := f.mapping()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// services returns the services mapping, creating it when create is set.
func (f *File) services(create bool) *yaml.Node {
	m := f.mapping()
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != servicesKey {
			continue
		}
		v := m.Content[i+1]
		if v.Kind != yaml.MappingNode && create {
			*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		if v.Kind != yaml.MappingNode {
			return nil
		}
		return v
	}
	if !create {
		return nil
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: servicesKey}, v)
	return v
}

// Services returns every service name mapped to its source.
func (f *File) Services() map[string]string {
	out := map[string]string{}
	s := f.services(false)
	if s == nil {
		return out
	}
	for i := 0; i+1 < len(s.Content); i += 2 {
		out[s.Content[i].Value] = s.Content[i+1].Value
	}
	return out
}

// Names lists service names, sorted.
func (f *File) Names() []string {
	svcs := f.Services()
	names := make([]string, 0, len(svcs))
	for n := range svcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Service returns the source of name.
func (f *File) Service(name string) (string, bool) {
	src, ok := f.Services()[name]
	return src, ok
}

// AddService records name → source. Names must be usable as directory names;
// a name or a directory uuid already present is rejected.
func (f *File) AddService(name, source string) error {
	name = strings.TrimSpace(name)
	source = strings.TrimSpace(source)
	if err := ValidName(name); err != nil {
		return err
	}
	if source == "" {
		return fmt.Errorf("service %q: source is required", name)
	}
	existing := f.Services()
	if _, ok := existing[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	if remote.IsRef(source) {
		ref, err := remote.ParseRef(source)
		if err != nil {
			return err
		}
		for other, src := range existing {
			if !remote.IsRef(src) {
				continue
			}
			if r, err := remote.ParseRef(src); err == nil && r.UUID == ref.UUID {
				return fmt.Errorf("%w: %s is registered as %q; remove it first to change its version", ErrDuplicateUUID, ref.UUID, other)
			}
		}
		source = ref.String()
	}
	s := f.services(true)
	s.Content = append(s.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: source})
	return nil
}

// RemoveService deletes name.
func (f *File) RemoveService(name string) error {
	s := f.services(false)
	if s != nil {
		for i := 0; i+1 < len(s.Content); i += 2 {
			if s.Content[i].Value == name {
				s.Content = append(s.Content[:i], s.Content[i+2:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ValidName reports whether name can be used as a service directory name.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid service name %q", name)
	}
	if strings.ContainsAny(name, `/\:*?"<>|`) {
		return fmt.Errorf("invalid service name %q: must be a valid directory name", name)
	}
	for _, r := range name {
		if r < 0x20 {
			return fmt.Errorf("invalid service name %q: control characters are not allowed", name)
		}
	}
	return nil
}

// Marshal renders the file: indented JSON for .json paths, YAML otherwise.
func (f *File) Marshal() ([]byte, error) {
	if strings.EqualFold(filepath.Ext(f.Path), ".json") {
		var v any
		if err := f.doc.Decode(&v); err != nil {
			return nil, err
		}
		if v == nil {
			v = map[string]any{}
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the file atomically.
func (f *File) Save() error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("render project file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}
