// Package ideconfig edits the IDE include-path descriptor
// (.vscode/c_cpp_properties.json).
//
// The descriptor is kept as a generic JSON document so that keys this package
// does not manage survive a rewrite. Only three things are touched: the
// PACKAGE_ID and PACKAGE_VERSION substitution macros under "env", and each
// configuration's "includePath" list.
package ideconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// Dir is the directory holding the descriptor, relative to the project root.
	Dir = ".vscode"

	// FileName is the descriptor's file name.
	FileName = "c_cpp_properties.json"

	EnvID      = "PACKAGE_ID"
	EnvVersion = "PACKAGE_VERSION"

	// DefaultConfiguration names the configuration created when the
	// descriptor has none.
	DefaultConfiguration = "Android"
)

// Path returns the descriptor path inside a project root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// File is a parsed descriptor.
type File struct {
	doc map[string]any
}

// Parse decodes a descriptor. Structural problems in the managed keys are
// reported as errors; everything else is left alone.
func Parse(data []byte) (*File, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode include-path descriptor: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	f := &File{doc: doc}
	if err := f.check(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads and parses the descriptor at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (f *File) check() error {
	if v, ok := f.doc["env"]; ok {
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf(`"env" must be an object, got %T`, v)
		}
	}
	v, ok := f.doc["configurations"]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf(`"configurations" must be an array, got %T`, v)
	}
	for i, c := range list {
		cfg, ok := c.(map[string]any)
		if !ok {
			return fmt.Errorf("configuration %d must be an object, got %T", i, c)
		}
		if p, ok := cfg["includePath"]; ok {
			paths, ok := p.([]any)
			if !ok {
				return fmt.Errorf("configuration %d: \"includePath\" must be an array, got %T", i, p)
			}
			for _, s := range paths {
				if _, ok := s.(string); !ok {
					return fmt.Errorf("configuration %d: include path must be a string, got %T", i, s)
				}
			}
		}
	}
	return nil
}

// ID returns the PACKAGE_ID macro.
func (f *File) ID() string { return f.env(EnvID) }

// Version returns the PACKAGE_VERSION macro.
func (f *File) Version() string { return f.env(EnvVersion) }

// SetID sets the PACKAGE_ID macro and reports whether it changed.
func (f *File) SetID(id string) bool { return f.setEnv(EnvID, id) }

// SetVersion sets the PACKAGE_VERSION macro and reports whether it changed.
func (f *File) SetVersion(v string) bool { return f.setEnv(EnvVersion, v) }

func (f *File) env(key string) string {
	env, _ := f.doc["env"].(map[string]any)
	s, _ := env[key].(string)
	return s
}

func (f *File) setEnv(key, value string) bool {
	env, ok := f.doc["env"].(map[string]any)
	if !ok {
		env = map[string]any{}
		f.doc["env"] = env
	}
	if cur, ok := env[key].(string); ok && cur == value {
		return false
	}
	env[key] = value
	return true
}

// IncludePaths returns the distinct include paths of every configuration, in
// first-seen order.
func (f *File) IncludePaths() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cfg := range f.configurations() {
		for _, p := range includePath(cfg) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// AddIncludePath appends path to every configuration that lacks it. A
// descriptor without configurations gets a default one. It reports whether
// the descriptor changed.
func (f *File) AddIncludePath(path string) bool {
	configs := f.configurations()
	if len(configs) == 0 {
		cfg := map[string]any{"name": DefaultConfiguration}
		f.doc["configurations"] = []any{cfg}
		configs = []map[string]any{cfg}
	}
	changed := false
	for _, cfg := range configs {
		paths := includePath(cfg)
		if contains(paths, path) {
			continue
		}
		list, _ := cfg["includePath"].([]any)
		cfg["includePath"] = append(list, path)
		changed = true
	}
	return changed
}

func (f *File) configurations() []map[string]any {
	list, _ := f.doc["configurations"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		if cfg, ok := c.(map[string]any); ok {
			out = append(out, cfg)
		}
	}
	return out
}

func includePath(cfg map[string]any) []string {
	list, _ := cfg["includePath"].([]any)
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Bytes renders the descriptor with four-space indentation. Object keys are
// written in sorted order.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(f.doc); err != nil {
		return nil, fmt.Errorf("encode include-path descriptor: %w", err)
	}
	return buf.Bytes(), nil
}
