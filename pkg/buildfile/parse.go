package buildfile

import (
	"strings"
)

// Parse reads a descriptor. The last module becomes the primary module.
// Unknown lines are preserved: before a module they become its prefix, inside
// a module they are kept as extra lines, and after the last module they form
// the trailer.
func Parse(data []byte) (*File, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	f := &File{}
	seen := make(map[string]bool)
	var pending []string
	var cur *Module

	for i := 0; i < len(lines); {
		lineNo := i + 1
		raw := []string{lines[i]}
		joined := lines[i]
		for continues(joined) && i+1 < len(lines) {
			joined = strings.TrimSuffix(strings.TrimRight(joined, " \t"), "\\") + " " + lines[i+1]
			i++
			raw = append(raw, lines[i])
		}
		i++
		trimmed := strings.TrimSpace(joined)

		if cur == nil {
			if name, op, val, ok := assignment(trimmed); ok && name == "LOCAL_MODULE" && op != "+=" {
				id := strings.TrimSpace(val)
				if id == "" {
					return nil, &ParseError{Line: lineNo, Msg: "empty LOCAL_MODULE"}
				}
				if seen[strings.ToLower(id)] {
					return nil, &ParseError{Line: lineNo, Msg: "duplicate module " + id}
				}
				seen[strings.ToLower(id)] = true
				cur = &Module{ID: id, PrefixLines: pending}
				pending = nil
				continue
			}
			pending = append(pending, raw...)
			continue
		}

		if trimmed == clearVars {
			// A new block started before this one was built.
			f.Modules = append(f.Modules, cur)
			cur = nil
			pending = append(pending, raw...)
			continue
		}
		if isBuildDirective(trimmed) {
			cur.BuildDirective = trimmed
			f.Modules = append(f.Modules, cur)
			cur = nil
			continue
		}

		name, op, val, ok := assignment(trimmed)
		if !ok {
			cur.Extra = append(cur.Extra, raw...)
			continue
		}
		switch {
		case name == "LOCAL_MODULE":
			return nil, &ParseError{Line: lineNo, Msg: "LOCAL_MODULE redefined inside module " + cur.ID}
		case name == "LOCAL_SRC_FILES":
			cur.Sources = assign(cur.Sources, op, val)
		case name == "LOCAL_EXPORT_C_INCLUDES":
			cur.ExportIncludes = assign(cur.ExportIncludes, op, val)
		case name == "LOCAL_SHARED_LIBRARIES":
			cur.SharedLibraries = assign(cur.SharedLibraries, op, val)
		case name == "LOCAL_CFLAGS":
			defines, rest := splitDefines(val)
			if op != "+=" {
				cur.resetFlags(op, rest)
				rest = nil
			}
			for _, d := range defines {
				cur.SetDefine(d.Name, d.Value)
			}
			if len(rest) > 0 {
				cur.Extra = append(cur.Extra, "LOCAL_CFLAGS += "+strings.Join(rest, " "))
			}
		default:
			cur.Extra = append(cur.Extra, raw...)
		}
	}
	if cur != nil {
		f.Modules = append(f.Modules, cur)
	}
	f.Trailer = pending

	if len(f.Modules) > 0 {
		f.Header, f.Modules[0].PrefixLines = splitHeader(f.Modules[0].PrefixLines)
		f.Modules[len(f.Modules)-1].Role = RolePrimary
	}
	return f, nil
}

// resetFlags records a LOCAL_CFLAGS assignment that discards everything
// appended before it, including earlier defines.
func (m *Module) resetFlags(op string, flags []string) {
	m.FlagsOp = op
	m.Flags = flags
	m.Defines = nil
	kept := m.Extra[:0]
	for _, l := range m.Extra {
		if !strings.HasPrefix(l, "LOCAL_CFLAGS += ") {
			kept = append(kept, l)
		}
	}
	m.Extra = kept
}

// splitHeader separates file-level lines (LOCAL_PATH and friends) from the
// first module's own prefix: the prefix starts at the comment block and
// blank lines directly above the first CLEAR_VARS.
func splitHeader(prefix []string) (header, rest []string) {
	idx := -1
	for i, l := range prefix {
		if strings.TrimSpace(l) == clearVars {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, prefix
	}
	j := idx
	for j > 0 && strings.HasPrefix(strings.TrimSpace(prefix[j-1]), "#") {
		j--
	}
	for j > 0 && strings.TrimSpace(prefix[j-1]) == "" {
		j--
	}
	if j == 0 {
		return nil, prefix
	}
	return prefix[:j], prefix[j:]
}

func isBuildDirective(line string) bool {
	return strings.HasPrefix(line, "include $(BUILD_") || strings.HasPrefix(line, "include $(PREBUILT_")
}

func continues(line string) bool {
	return strings.HasSuffix(strings.TrimRight(line, " \t"), "\\")
}

// assignment splits "NAME op value" for the operators :=, = and +=.
func assignment(line string) (name, op, value string, ok bool) {
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", "", false
	}
	for _, candidate := range []string{":=", "+=", "="} {
		i := strings.Index(line, candidate)
		if i <= 0 {
			continue
		}
		name = strings.TrimSpace(line[:i])
		if name == "" || strings.ContainsAny(name, " \t$()") {
			continue
		}
		return name, candidate, strings.TrimSpace(line[i+len(candidate):]), true
	}
	return "", "", "", false
}

func assign(cur []string, op, val string) []string {
	if op != "+=" {
		cur = nil
	}
	return append(cur, fields(val)...)
}

// fields splits on whitespace outside $(...) groups and quotes.
func fields(s string) []string {
	var out []string
	var b strings.Builder
	depth := 0
	var quote rune
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

// splitDefines pulls -DNAME=VALUE tokens out of a flag list.
func splitDefines(val string) (defines []Define, rest []string) {
	for _, tok := range fields(val) {
		name, value, ok := strings.Cut(strings.TrimPrefix(tok, "-D"), "=")
		if !strings.HasPrefix(tok, "-D") || !ok || name == "" {
			rest = append(rest, tok)
			continue
		}
		defines = append(defines, Define{Name: name, Value: unquote(value)})
	}
	return defines, rest
}

func unquote(v string) string {
	for _, q := range [][2]string{{`\"`, `\"`}, {`'"`, `"'`}, {`"`, `"`}, {`'`, `'`}} {
		if len(v) >= len(q[0])+len(q[1]) && strings.HasPrefix(v, q[0]) && strings.HasSuffix(v, q[1]) {
			return v[len(q[0]) : len(v)-len(q[1])]
		}
	}
	return v
}
