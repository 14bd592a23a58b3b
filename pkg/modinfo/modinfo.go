// Package modinfo edits the packaging-metadata descriptor (mod.json) read by
// the downstream packaging step.
package modinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the descriptor's file name in the project root.
const FileName = "mod.json"

// Path returns the descriptor path inside a project root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// File is a parsed descriptor. Keys other than id, version and name are kept
// as they were read.
type File struct {
	doc map[string]any
}

// Parse decodes a descriptor.
func Parse(data []byte) (*File, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode packaging metadata: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for _, key := range []string{"id", "version", "name"} {
		if v, ok := doc[key]; ok {
			if _, ok := v.(string); !ok {
				return nil, fmt.Errorf("packaging metadata: %q must be a string, got %T", key, v)
			}
		}
	}
	return &File{doc: doc}, nil
}

// Load reads and parses the descriptor at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (f *File) ID() string      { return f.get("id") }
func (f *File) Version() string { return f.get("version") }
func (f *File) Name() string    { return f.get("name") }

// SetID reports whether the id changed.
func (f *File) SetID(id string) bool { return f.set("id", id) }

// SetVersion reports whether the version changed.
func (f *File) SetVersion(v string) bool { return f.set("version", v) }

// SetName reports whether the display name changed.
func (f *File) SetName(name string) bool { return f.set("name", name) }

func (f *File) get(key string) string {
	s, _ := f.doc[key].(string)
	return s
}

func (f *File) set(key, value string) bool {
	if cur, ok := f.doc[key].(string); ok && cur == value {
		return false
	}
	f.doc[key] = value
	return true
}

// Bytes renders the descriptor with two-space indentation and sorted keys.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.doc); err != nil {
		return nil, fmt.Errorf("encode packaging metadata: %w", err)
	}
	return buf.Bytes(), nil
}
