package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/olehluchkiv/scopescan/internal/engine"
	"github.com/olehluchkiv/scopescan/internal/scope"
)

// Report is the outcome of one analysis run over every selected scope.
type Report struct {
	RunID        string        `json:"run_id"`
	Input        string        `json:"input"`
	ModulePath   string        `json:"module_path,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	DurationMS   int64         `json:"duration_ms"`
	TypesVisited int64         `json:"types_visited"`
	Scopes       []ScopeResult `json:"scopes"`
}

// ScopeResult holds the entities matched for one scope, or the reason the
// scope could not be resolved.
type ScopeResult struct {
	Name       string      `json:"name"`
	Containers []Container `json:"containers"`
	Error      string      `json:"error,omitempty"`
	Entities   []Entry     `json:"entities"`
}

// Container is a scope container and its method patterns as declared.
type Container struct {
	Name    string   `json:"name"`
	Methods []string `json:"methods"`
}

// Entry is one flat scope entity.
type Entry struct {
	Type       string `json:"type"`
	Method     string `json:"method"`
	SourceFile string `json:"source_file,omitempty"`
}

type sourceFiler interface {
	SourceFile() string
}

// New starts a report for input with a fresh run ID.
func New(input, modulePath string) *Report {
	return &Report{
		RunID:      uuid.NewString(),
		Input:      input,
		ModulePath: modulePath,
		StartedAt:  time.Now().UTC(),
	}
}

func containersOf(def *scope.Definition) []Container {
	names := def.Containers()
	out := make([]Container, 0, len(names))
	for _, n := range names {
		out = append(out, Container{Name: n, Methods: def.Methods(n)})
	}
	return out
}

// AddMatches records the entities matched for def.
func (r *Report) AddMatches(def *scope.Definition, set *engine.EntitySet) {
	res := ScopeResult{Name: def.Name(), Containers: containersOf(def), Entities: []Entry{}}
	for _, e := range set.Entities() {
		entry := Entry{Type: e.Type.Name(), Method: e.Signature.String()}
		if sf, ok := e.Type.(sourceFiler); ok {
			entry.SourceFile = sf.SourceFile()
		}
		res.Entities = append(res.Entities, entry)
	}
	r.Scopes = append(r.Scopes, res)
}

// AddFailure records a scope whose containers or patterns could not be
// resolved.
func (r *Report) AddFailure(def *scope.Definition, err error) {
	r.Scopes = append(r.Scopes, ScopeResult{
		Name:       def.Name(),
		Containers: containersOf(def),
		Error:      err.Error(),
		Entities:   []Entry{},
	})
}

// Finish stamps the run duration and orders scopes by name.
func (r *Report) Finish(visited int64) {
	r.TypesVisited = visited
	r.DurationMS = time.Since(r.StartedAt).Milliseconds()
	sort.SliceStable(r.Scopes, func(i, j int) bool { return r.Scopes[i].Name < r.Scopes[j].Name })
}

// Failures returns the scopes that failed to resolve.
func (r *Report) Failures() []ScopeResult {
	var out []ScopeResult
	for _, s := range r.Scopes {
		if s.Error != "" {
			out = append(out, s)
		}
	}
	return out
}

// Err joins the resolution failures into one error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Failures() {
		errs = append(errs, fmt.Errorf("scope %s: %s", s.Name, s.Error))
	}
	return errors.Join(errs...)
}

// EntityCount returns the number of entities across all scopes.
func (r *Report) EntityCount() int {
	n := 0
	for _, s := range r.Scopes {
		n += len(s.Entities)
	}
	return n
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteTable writes a human readable table, one row per entity.
func (r *Report) WriteTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scope", "Type", "Method", "File"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)

	for _, s := range r.Scopes {
		if s.Error != "" {
			continue
		}
		for _, e := range s.Entities {
			table.Append([]string{s.Name, e.Type, e.Method, e.SourceFile})
		}
	}
	table.SetFooter([]string{
		fmt.Sprintf("Scopes %d", len(r.Scopes)),
		fmt.Sprintf("Types visited %d", r.TypesVisited),
		fmt.Sprintf("Entities %d", r.EntityCount()),
		"",
	})
	table.Render()

	for _, s := range r.Failures() {
		if _, err := fmt.Fprintf(w, "\nscope %s failed: %s\n", s.Name, s.Error); err != nil {
			return err
		}
	}
	if len(r.Failures()) == 0 && r.EntityCount() == 0 {
		_, err := fmt.Fprintf(w, "\nno entities matched (%s)\n", strings.Join(r.scopeNames(), ", "))
		return err
	}
	return nil
}

func (r *Report) scopeNames() []string {
	names := make([]string, len(r.Scopes))
	for i, s := range r.Scopes {
		names[i] = s.Name
	}
	return names
}
