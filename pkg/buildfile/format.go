package buildfile

import (
	"strings"
)

// Bytes renders the descriptor. Dependency modules keep their order and the
// primary module is written last.
func (f *File) Bytes() []byte {
	var b strings.Builder
	writeLines(&b, f.Header)
	var primary *Module
	for _, m := range f.Modules {
		if m.Role == RolePrimary {
			primary = m
			continue
		}
		m.write(&b)
	}
	if primary != nil {
		primary.write(&b)
	}
	writeLines(&b, f.Trailer)
	return []byte(b.String())
}

func (m *Module) write(b *strings.Builder) {
	writeLines(b, m.PrefixLines)
	writeLine(b, "LOCAL_MODULE := "+m.ID)
	if len(m.Sources) > 0 {
		writeLine(b, "LOCAL_SRC_FILES := "+strings.Join(m.Sources, " "))
	}
	if len(m.ExportIncludes) > 0 {
		writeLine(b, "LOCAL_EXPORT_C_INCLUDES := "+strings.Join(m.ExportIncludes, " "))
	}
	if m.FlagsOp != "" {
		writeLine(b, strings.TrimRight("LOCAL_CFLAGS "+m.FlagsOp+" "+strings.Join(m.Flags, " "), " "))
	}
	for _, d := range m.Defines {
		writeLine(b, `LOCAL_CFLAGS += -D`+d.Name+`=\"`+d.Value+`\"`)
	}
	if len(m.SharedLibraries) > 0 {
		writeLine(b, "LOCAL_SHARED_LIBRARIES := "+strings.Join(m.SharedLibraries, " "))
	}
	writeLines(b, m.Extra)
	if m.BuildDirective != "" {
		writeLine(b, m.BuildDirective)
	}
}

func writeLines(b *strings.Builder, lines []string) {
	for _, l := range lines {
		writeLine(b, l)
	}
}

func writeLine(b *strings.Builder, l string) {
	b.WriteString(l)
	b.WriteByte('\n')
}
