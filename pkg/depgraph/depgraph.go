// Package depgraph renders a project's locked dependency graph.
//
// Nodes are the project and every locked dependency; edges follow each
// manifest's declared dependencies. Headers-only packages get a dashed
// outline.
//
//	dot := depgraph.ToDOT(own, lock, depgraph.Options{Versions: true})
//	svg, err := depgraph.RenderSVG(ctx, dot)
//
// DOT output needs nothing external. SVG output uses
// [github.com/goccy/go-graphviz], which runs Graphviz in-process.
package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// Options configures DOT generation.
type Options struct {
	// Versions adds the resolved version under each node id.
	Versions bool
}

// Edge is one declared dependency between two graph nodes.
type Edge struct {
	From, To string
	Range    string
}

// Edges lists the dependency edges of own and its locked closure, in walk
// order. Edges to ids missing from the lock are dropped.
func Edges(own *manifest.Manifest, lock *manifest.LockFile) []Edge {
	var out []Edge
	seen := make(map[string]bool)
	var visit func(m *manifest.Manifest)
	visit = func(m *manifest.Manifest) {
		key := strings.ToLower(m.ID)
		if seen[key] {
			return
		}
		seen[key] = true
		for _, spec := range m.Dependencies {
			rd, ok := lock.Get(spec.ID)
			if !ok {
				continue
			}
			out = append(out, Edge{From: m.ID, To: rd.ID, Range: spec.Range()})
			visit(&rd.Manifest)
		}
	}
	visit(own)
	return out
}

// ToDOT converts the locked graph to Graphviz DOT.
func ToDOT(own *manifest.Manifest, lock *manifest.LockFile, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [%s];\n", own.ID, strings.Join(nodeAttrs(own, opts, true), ", "))
	for _, rd := range lock.Dependencies {
		fmt.Fprintf(&buf, "  %q [%s];\n", rd.ID, strings.Join(nodeAttrs(&rd.Manifest, opts, false), ", "))
	}

	buf.WriteString("\n")
	for _, e := range Edges(own, lock) {
		fmt.Fprintf(&buf, "  %q -> %q [tooltip=%q];\n", e.From, e.To, e.Range)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(m *manifest.Manifest, opts Options, root bool) []string {
	label := m.ID
	if opts.Versions && m.Version != "" {
		label += "\n" + m.Version
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if root {
		attrs = append(attrs, "penwidth=2")
	}
	if headersOnly, _ := m.HeadersOnly(); headersOnly {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales from a
// zero origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
