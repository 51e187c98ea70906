package diagram

import (
	"fmt"

	"github.com/olehluchkiv/scopescan/internal/report"
)

// Slide represents one navigable page in the slide deck.
type Slide struct {
	Title   string
	Mermaid string
}

// SlideOptions controls slide deck generation.
type SlideOptions struct {
	MaxTypesPerSlide int // matched types shown per slide; 0 = no split
}

// DefaultSlideOptions returns sensible defaults.
func DefaultSlideOptions() SlideOptions {
	return SlideOptions{MaxTypesPerSlide: 12}
}

// BuildSlides turns every resolved scope into one slide, splitting scopes
// with many matched types into several slides that each repeat the
// containers. Failed scopes get no slide.
func BuildSlides(r *report.Report, diagOpts DiagramOptions, opts SlideOptions) []Slide {
	var slides []Slide
	for _, s := range r.Scopes {
		if s.Error != "" {
			continue
		}
		types, _ := groupEntities(s.Entities)
		names := sortedKeys(types)
		chunks := chunkSlice(names, opts.MaxTypesPerSlide)
		if len(chunks) <= 1 {
			slides = append(slides, Slide{Title: s.Name, Mermaid: GenerateMermaid(s, diagOpts)})
			continue
		}
		for i, chunk := range chunks {
			slides = append(slides, Slide{
				Title:   fmt.Sprintf("%s (%d/%d)", s.Name, i+1, len(chunks)),
				Mermaid: GenerateMermaid(subScope(s, chunk), diagOpts),
			})
		}
	}
	return slides
}

// subScope keeps the entities of s whose type is in names.
func subScope(s report.ScopeResult, names []string) report.ScopeResult {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	sub := report.ScopeResult{Name: s.Name, Containers: s.Containers}
	for _, e := range s.Entities {
		if keep[e.Type] {
			sub.Entities = append(sub.Entities, e)
		}
	}
	return sub
}

// chunkSlice splits items into consecutive chunks of at most n; n <= 0
// returns a single chunk.
func chunkSlice(items []string, n int) [][]string {
	if n <= 0 || len(items) <= n {
		return [][]string{items}
	}
	var chunks [][]string
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
