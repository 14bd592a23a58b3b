// Package buildfile reads and edits ndk-build module descriptors (Android.mk).
//
// A descriptor is an ordered list of modules. Each module is written as
//
//	<prefix lines, verbatim>
//	LOCAL_MODULE := <id>
//	LOCAL_SRC_FILES := <source> ...
//	LOCAL_EXPORT_C_INCLUDES := <path> ...
//	LOCAL_CFLAGS := <flag> ...
//	LOCAL_CFLAGS += -D<NAME>=\"<value>\"
//	LOCAL_SHARED_LIBRARIES := <id> ...
//	<other lines, verbatim>
//	include $(BUILD_SHARED_LIBRARY)
//
// The module that builds the project itself is the primary module. On disk it
// is always the last one; in memory it carries [RolePrimary] so edits never
// depend on slice position. Lines the parser does not understand are kept and
// written back unchanged.
package buildfile

import (
	"fmt"
	"os"
	"strings"
)

// FileName is the descriptor file name at the project root.
const FileName = "Android.mk"

// Build directives.
const (
	DirectivePrebuilt = "include $(PREBUILT_SHARED_LIBRARY)"
	clearVars         = "include $(CLEAR_VARS)"
)

// Role tells the primary module apart from dependency modules.
type Role int

const (
	RoleDependency Role = iota
	RolePrimary
)

func (r Role) String() string {
	if r == RolePrimary {
		return "primary"
	}
	return "dependency"
}

// Define is one preprocessor macro passed through LOCAL_CFLAGS.
type Define struct {
	Name  string
	Value string
}

// Module is one LOCAL_MODULE block.
type Module struct {
	ID              string
	Role            Role
	PrefixLines     []string
	Sources         []string
	ExportIncludes  []string
	Defines         []Define
	// FlagsOp is set when the module assigns LOCAL_CFLAGS with := or = and
	// Flags holds the non-define flags of that assignment. Defines are always
	// written after it so the reset cannot discard them.
	FlagsOp         string
	Flags           []string
	SharedLibraries []string
	Extra           []string
	BuildDirective  string
}

// File is a parsed descriptor.
type File struct {
	Header  []string
	Modules []*Module
	Trailer []string
}

// ParseError reports a descriptor the parser refuses to edit.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", FileName, e.Line, e.Msg)
}

// Load reads and parses the descriptor at path. A missing file is returned
// as an os.ErrNotExist error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Primary returns the primary module, or nil for a descriptor without modules.
func (f *File) Primary() *Module {
	for _, m := range f.Modules {
		if m.Role == RolePrimary {
			return m
		}
	}
	return nil
}

// Module returns the module with id (case-insensitive), or nil.
func (f *File) Module(id string) *Module {
	for _, m := range f.Modules {
		if strings.EqualFold(m.ID, id) {
			return m
		}
	}
	return nil
}

// UpsertDependency creates or updates the prebuilt module for a dependency.
// New modules are placed before the primary module. It reports whether the
// descriptor changed.
func (f *File) UpsertDependency(id string, sources, exportIncludes []string) bool {
	if m := f.Module(id); m != nil {
		if m.Role == RolePrimary {
			return false
		}
		changed := !equalStrings(m.Sources, sources) || !equalStrings(m.ExportIncludes, exportIncludes)
		m.Sources = append([]string(nil), sources...)
		m.ExportIncludes = append([]string(nil), exportIncludes...)
		return changed
	}

	m := &Module{
		ID:             id,
		Role:           RoleDependency,
		PrefixLines:    []string{"", "# Prebuilt dependency: " + id, clearVars},
		Sources:        append([]string(nil), sources...),
		ExportIncludes: append([]string(nil), exportIncludes...),
		BuildDirective: DirectivePrebuilt,
	}
	at := len(f.Modules)
	for i, existing := range f.Modules {
		if existing.Role == RolePrimary {
			at = i
			break
		}
	}
	f.Modules = append(f.Modules, nil)
	copy(f.Modules[at+1:], f.Modules[at:])
	f.Modules[at] = m
	return true
}

// RemoveModule deletes the dependency module with id. The primary module is
// never removed. It reports whether a module was removed.
func (f *File) RemoveModule(id string) bool {
	for i, m := range f.Modules {
		if m.Role != RolePrimary && strings.EqualFold(m.ID, id) {
			f.Modules = append(f.Modules[:i], f.Modules[i+1:]...)
			return true
		}
	}
	return false
}

// SetDefine sets a macro, replacing an existing one with the same name.
// It reports whether the module changed.
func (m *Module) SetDefine(name, value string) bool {
	for i := range m.Defines {
		if m.Defines[i].Name == name {
			if m.Defines[i].Value == value {
				return false
			}
			m.Defines[i].Value = value
			return true
		}
	}
	m.Defines = append(m.Defines, Define{Name: name, Value: value})
	return true
}

// Define returns the value of a macro.
func (m *Module) Define(name string) (string, bool) {
	for _, d := range m.Defines {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// AddExportInclude appends path unless already present.
func (m *Module) AddExportInclude(path string) bool {
	for _, p := range m.ExportIncludes {
		if p == path {
			return false
		}
	}
	m.ExportIncludes = append(m.ExportIncludes, path)
	return true
}

// HasSharedLibrary reports whether id is linked (case-insensitive).
func (m *Module) HasSharedLibrary(id string) bool {
	for _, lib := range m.SharedLibraries {
		if strings.EqualFold(lib, id) {
			return true
		}
	}
	return false
}

// AddSharedLibrary links id at most once.
func (m *Module) AddSharedLibrary(id string) bool {
	if m.HasSharedLibrary(id) {
		return false
	}
	m.SharedLibraries = append(m.SharedLibraries, id)
	return true
}

// RemoveSharedLibrary unlinks every case-insensitive match of id.
func (m *Module) RemoveSharedLibrary(id string) bool {
	kept := m.SharedLibraries[:0]
	for _, lib := range m.SharedLibraries {
		if !strings.EqualFold(lib, id) {
			kept = append(kept, lib)
		}
	}
	changed := len(kept) != len(m.SharedLibraries)
	m.SharedLibraries = kept
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
