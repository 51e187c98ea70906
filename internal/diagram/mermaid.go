package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olehluchkiv/scopescan/internal/report"
	"github.com/olehluchkiv/scopescan/internal/signature"
)

// DiagramOptions controls Mermaid diagram generation.
type DiagramOptions struct {
	MaxMethodsPerBox int  // default 5, 0 means unlimited
	IncludeInit      bool // include %%{init:}%% directive (for standalone .mmd files)
}

// DefaultDiagramOptions returns sensible defaults for diagram generation.
func DefaultDiagramOptions() DiagramOptions {
	return DiagramOptions{MaxMethodsPerBox: 5}
}

// GenerateMermaid produces a Mermaid classDiagram for one scope: a block per
// container listing its patterns, a block per matched type listing the
// matched methods, and an edge from each type to the containers whose
// patterns it matched.
func GenerateMermaid(res report.ScopeResult, opts DiagramOptions) string {
	var b strings.Builder

	if opts.IncludeInit {
		b.WriteString("%%{init: {'theme': 'base', 'themeVariables': {'primaryColor': '#ffffff', 'primaryBorderColor': '#cccccc', 'primaryTextColor': '#000000', 'lineColor': '#555555'}}%%\n")
	}
	b.WriteString("classDiagram")

	types, files := groupEntities(res.Entities)
	typeNames := sortedKeys(types)
	if len(res.Containers) == 0 && len(typeNames) == 0 {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString("    direction LR\n")
	b.WriteString("    classDef containerStyle fill:#2374ab,stroke:#1a5a8a,color:#fff,stroke-width:2px,font-weight:bold\n")
	b.WriteString("    classDef matchStyle fill:#4a9c6d,stroke:#357a50,color:#fff,stroke-width:2px")

	patterns := make(map[string]map[string]bool, len(res.Containers))
	for _, c := range res.Containers {
		b.WriteString("\n")
		writeContainerBlock(&b, c, opts)
		keys := make(map[string]bool, len(c.Methods))
		for _, m := range c.Methods {
			if sig, err := signature.Parse(m); err == nil {
				keys[sig.Key()] = true
			}
		}
		patterns[c.Name] = keys
	}

	if len(res.Containers) > 0 && len(typeNames) > 0 {
		b.WriteString("\n")
	}
	for _, name := range typeNames {
		b.WriteString("\n")
		writeTypeBlock(&b, name, files[name], types[name], opts)
	}

	var rels []string
	for _, name := range typeNames {
		for _, c := range res.Containers {
			if sharesMethod(types[name], patterns[c.Name]) {
				rels = append(rels, fmt.Sprintf("    %s --|> %s", NodeID(name), NodeID(c.Name)))
			}
		}
	}
	if len(rels) > 0 {
		b.WriteString("\n")
	}
	for _, rel := range rels {
		b.WriteString("\n")
		b.WriteString(rel)
	}

	b.WriteString("\n")
	for _, c := range res.Containers {
		b.WriteString(fmt.Sprintf("\n    cssClass \"%s\" containerStyle", NodeID(c.Name)))
	}
	for _, name := range typeNames {
		b.WriteString(fmt.Sprintf("\n    cssClass \"%s\" matchStyle", NodeID(name)))
	}

	return b.String()
}

// Markdown renders every resolved scope of r as a headed mermaid block.
// Failed scopes are listed with their error.
func Markdown(r *report.Report, opts DiagramOptions) string {
	var b strings.Builder
	b.WriteString("# Scope report\n")
	for _, s := range r.Scopes {
		b.WriteString("\n## " + s.Name + "\n\n")
		if s.Error != "" {
			b.WriteString("> " + s.Error + "\n")
			continue
		}
		b.WriteString("```mermaid\n")
		b.WriteString(GenerateMermaid(s, opts))
		b.WriteString("\n```\n")
	}
	return b.String()
}

// groupEntities collects matched methods per type name.
func groupEntities(entries []report.Entry) (map[string][]string, map[string]string) {
	types := make(map[string][]string)
	files := make(map[string]string)
	for _, e := range entries {
		types[e.Type] = append(types[e.Type], e.Method)
		if e.SourceFile != "" {
			files[e.Type] = e.SourceFile
		}
	}
	for _, ms := range types {
		sort.Strings(ms)
	}
	return types, files
}

func sharesMethod(methods []string, keys map[string]bool) bool {
	for _, m := range methods {
		if keys[m] {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SanitizeSignature removes characters in method signatures that break Mermaid syntax.
// Mermaid treats {}, <>, and ~ as special in class diagram labels.
func SanitizeSignature(sig string) string {
	sig = strings.ReplaceAll(sig, "<-chan", "chan")
	// Bare "interface" is reserved in browser Mermaid.js.
	sig = strings.ReplaceAll(sig, "interface{}", "any")
	sig = strings.ReplaceAll(sig, "{}", "")
	sig = strings.ReplaceAll(sig, "~", "")
	return sig
}

// NodeID builds a Mermaid-safe node identifier from a qualified type name.
func NodeID(name string) string {
	r := strings.NewReplacer("/", "_", ".", "_", "-", "_", "$", "_", "*", "")
	return r.Replace(name)
}

// shortName strips the import path, keeping the last package element.
func shortName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func writeContainerBlock(b *strings.Builder, c report.Container, opts DiagramOptions) {
	b.WriteString(fmt.Sprintf("    class %s[\"%s\"] {\n", NodeID(c.Name), shortName(c.Name)))
	b.WriteString("        <<container>>\n")
	writeMethodLines(b, c.Methods, opts)
	b.WriteString("    }")
}

func writeTypeBlock(b *strings.Builder, name, file string, methods []string, opts DiagramOptions) {
	b.WriteString(fmt.Sprintf("    class %s[\"%s\"] {\n", NodeID(name), shortName(name)))
	if file != "" {
		b.WriteString("        %% file: " + file + "\n")
	}
	writeMethodLines(b, methods, opts)
	b.WriteString("    }")
}

// writeMethodLines writes method lines with optional truncation.
func writeMethodLines(b *strings.Builder, methods []string, opts DiagramOptions) {
	limit := len(methods)
	truncated := false
	if opts.MaxMethodsPerBox > 0 && limit > opts.MaxMethodsPerBox {
		limit = opts.MaxMethodsPerBox
		truncated = true
	}

	for i := 0; i < limit; i++ {
		b.WriteString(fmt.Sprintf("        +%s\n", SanitizeSignature(methods[i])))
	}
	if truncated {
		b.WriteString("        ...\n")
	}
}
