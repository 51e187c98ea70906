package gotypes

import (
	"context"
	"fmt"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/olehluchkiv/scopescan/internal/signature"
	"github.com/olehluchkiv/scopescan/internal/universe"
)

// Options controls which packages contribute candidate types.
type Options struct {
	// IncludeDeps also walks types of every dependency package. Containers
	// always resolve against the whole import graph.
	IncludeDeps bool
}

// Type is the handle of a Go named type.
type Type struct {
	obj        *types.TypeName
	typ        types.Type
	name       string
	sourceFile string
}

// Name returns the import path qualified name, e.g. "net/http.Handler".
func (t *Type) Name() string { return t.name }

func (t *Type) String() string { return t.name }

// SourceFile returns the declaring file relative to the module root, if known.
func (t *Type) SourceFile() string { return t.sourceFile }

// Universe is a type universe built from loaded Go packages. It is safe for
// concurrent use once Load returns.
type Universe struct {
	dir        string
	pkgs       map[string]*types.Package
	roots      []string
	candidates []*Type

	mu      sync.RWMutex
	handles map[string]*Type
}

// Load type-checks the packages under dir and indexes every package of the
// import graph.
func Load(ctx context.Context, dir string, opts Options, logger *slog.Logger) (*Universe, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo | packages.NeedImports | packages.NeedDeps,
		Dir:     dir,
		Context: ctx,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	logger.Info("packages loaded", "packages_count", len(pkgs))

	u := &Universe{
		dir:     dir,
		pkgs:    make(map[string]*types.Package),
		handles: make(map[string]*Type),
	}

	rootSet := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		rootSet[pkg.PkgPath] = true
		u.roots = append(u.roots, pkg.PkgPath)
		for _, e := range pkg.Errors {
			logger.Warn("package load error", "package", pkg.PkgPath, "error", e.Msg)
		}
	}
	sort.Strings(u.roots)

	var walkPkgs []*packages.Package
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if pkg.Types == nil {
			return
		}
		if _, seen := u.pkgs[pkg.PkgPath]; seen {
			return
		}
		u.pkgs[pkg.PkgPath] = pkg.Types
		if opts.IncludeDeps || rootSet[pkg.PkgPath] {
			walkPkgs = append(walkPkgs, pkg)
		}
	})

	for _, pkg := range walkPkgs {
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok {
				continue
			}
			t := u.handleFor(tn)
			t.sourceFile = resolveSourceFile(pkg.Fset, tn.Pos(), dir)
			u.candidates = append(u.candidates, t)
		}
	}
	sort.Slice(u.candidates, func(i, j int) bool { return u.candidates[i].name < u.candidates[j].name })

	logger.Info("types collected", "packages", len(u.pkgs), "candidates", len(u.candidates))
	return u, nil
}

// RootPackages returns the import paths of the packages matched under dir.
func (u *Universe) RootPackages() []string {
	return append([]string(nil), u.roots...)
}

// Len returns the number of candidate types Walk visits.
func (u *Universe) Len() int { return len(u.candidates) }

func qualifiedName(tn *types.TypeName) string {
	if tn.Pkg() == nil {
		return tn.Name()
	}
	return tn.Pkg().Path() + "." + tn.Name()
}

func (u *Universe) handleFor(tn *types.TypeName) *Type {
	key := qualifiedName(tn)
	u.mu.RLock()
	t, ok := u.handles[key]
	u.mu.RUnlock()
	if ok {
		return t
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if t, ok := u.handles[key]; ok {
		return t
	}
	t = &Type{obj: tn, typ: tn.Type(), name: key}
	u.handles[key] = t
	return t
}

// Resolve looks up "import/path.Name", or a predeclared type such as "error".
func (u *Universe) Resolve(name string) (universe.TypeHandle, error) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		if tn, ok := types.Universe.Lookup(name).(*types.TypeName); ok {
			return u.handleFor(tn), nil
		}
		return nil, fmt.Errorf("%s: %w", name, universe.ErrNotFound)
	}

	pkgPath, typeName := name[:dot], name[dot+1:]
	pkg, ok := u.pkgs[pkgPath]
	if !ok {
		return nil, fmt.Errorf("%s: package %s not in the import graph: %w", name, pkgPath, universe.ErrNotFound)
	}
	tn, ok := pkg.Scope().Lookup(typeName).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, universe.ErrNotFound)
	}
	return u.handleFor(tn), nil
}

func asType(h universe.TypeHandle) (*Type, bool) {
	t, ok := h.(*Type)
	return t, ok && t != nil
}

// IsAssignable reports whether candidate implements an interface container
// (through T or *T), is the container, or embeds it.
func (u *Universe) IsAssignable(container, candidate universe.TypeHandle) bool {
	c, ok1 := asType(container)
	t, ok2 := asType(candidate)
	if !ok1 || !ok2 {
		return false
	}
	if c == t {
		return true
	}
	if iface, ok := c.typ.Underlying().(*types.Interface); ok {
		if _, isIface := t.typ.Underlying().(*types.Interface); isIface {
			return types.Implements(t.typ, iface)
		}
		return types.Implements(t.typ, iface) || types.Implements(types.NewPointer(t.typ), iface)
	}
	return embeds(t.typ, c.typ, make(map[types.Type]bool))
}

// embeds reports whether target is an embedded field of t, directly or
// through other embedded structs.
func embeds(t, target types.Type, seen map[types.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		ft := f.Type()
		if p, ok := ft.(*types.Pointer); ok {
			ft = p.Elem()
		}
		if types.Identical(ft, target) || embeds(ft, target, seen) {
			return true
		}
	}
	return false
}

// LookupMethod resolves sig on t through the addressable method set, so
// promoted methods and pointer receivers are visible. The parameter types
// must match exactly.
func (u *Universe) LookupMethod(h universe.TypeHandle, sig signature.MethodSignature) (universe.Method, error) {
	t, ok := asType(h)
	if !ok {
		return universe.Method{}, fmt.Errorf("foreign type handle %v", h)
	}
	obj, index, _ := types.LookupFieldOrMethod(t.typ, true, t.obj.Pkg(), sig.Name())
	fn, ok := obj.(*types.Func)
	if !ok {
		return universe.Method{}, fmt.Errorf("%s.%s: %w", t.name, sig, universe.ErrNoSuchMethod)
	}
	got := methodSignature(fn)
	if !got.Equal(sig) {
		return universe.Method{}, fmt.Errorf("%s.%s (have %s): %w", t.name, sig, got, universe.ErrNoSuchMethod)
	}

	m := universe.Method{Signature: got, Declaring: t}
	if len(index) > 1 {
		m.Declaring, m.Abstract = u.receiverOf(fn)
	}
	return m, nil
}

// receiverOf returns the handle of the type declaring fn and whether fn is an
// interface method.
func (u *Universe) receiverOf(fn *types.Func) (universe.TypeHandle, bool) {
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return nil, false
	}
	rt := recv.Type()
	if p, ok := rt.(*types.Pointer); ok {
		rt = p.Elem()
	}
	_, abstract := rt.Underlying().(*types.Interface)
	named, ok := rt.(*types.Named)
	if !ok {
		return nil, abstract
	}
	return u.handleFor(named.Origin().Obj()), abstract
}

// methodSignature renders fn's parameters with import-path qualified types.
// A variadic final parameter is spelled ...T.
func methodSignature(fn *types.Func) signature.MethodSignature {
	sig := fn.Type().(*types.Signature)
	params := sig.Params()
	refs := make([]string, params.Len())
	for i := 0; i < params.Len(); i++ {
		pt := params.At(i).Type()
		if sig.Variadic() && i == params.Len()-1 {
			if s, ok := pt.(*types.Slice); ok {
				refs[i] = "..." + typeString(s.Elem())
				continue
			}
		}
		refs[i] = typeString(pt)
	}
	return signature.New(fn.Name(), refs...)
}

// typeString spells t with import-path qualifiers. Parameter and result
// names inside func types are dropped and the empty interface is spelled
// any, so identical types render identically.
func typeString(t types.Type) string {
	return types.TypeString(unnamed(t), func(pkg *types.Package) string {
		return pkg.Path()
	})
}

// unnamed rebuilds the unnamed composite parts of t without parameter names.
// Named types are kept as they are.
func unnamed(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.Alias, *types.Interface:
		if isEmptyInterface(t) {
			return anyType
		}
		return t
	case *types.Pointer:
		return types.NewPointer(unnamed(t.Elem()))
	case *types.Slice:
		return types.NewSlice(unnamed(t.Elem()))
	case *types.Array:
		return types.NewArray(unnamed(t.Elem()), t.Len())
	case *types.Map:
		return types.NewMap(unnamed(t.Key()), unnamed(t.Elem()))
	case *types.Chan:
		return types.NewChan(t.Dir(), unnamed(t.Elem()))
	case *types.Signature:
		return types.NewSignatureType(nil, nil, nil, unnamedTuple(t.Params()), unnamedTuple(t.Results()), t.Variadic())
	}
	return t
}

func unnamedTuple(tup *types.Tuple) *types.Tuple {
	if tup == nil || tup.Len() == 0 {
		return nil
	}
	vars := make([]*types.Var, tup.Len())
	for i := range vars {
		vars[i] = types.NewVar(token.NoPos, nil, "", unnamed(tup.At(i).Type()))
	}
	return types.NewTuple(vars...)
}

var anyType = types.Universe.Lookup("any").Type()

func isEmptyInterface(t types.Type) bool {
	iface, ok := t.Underlying().(*types.Interface)
	return ok && iface.NumMethods() == 0 && iface.NumEmbeddeds() == 0
}

// IsNormal reports whether h is a defined, non-generic, non-interface type
// declared in a package.
func (u *Universe) IsNormal(h universe.TypeHandle) bool {
	t, ok := asType(h)
	if !ok || t.obj.Pkg() == nil || t.obj.IsAlias() || t.obj.Name() == "_" {
		return false
	}
	named, ok := t.typ.(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return false
	}
	_, isIface := named.Underlying().(*types.Interface)
	return !isIface
}

// Visibility maps Go export status onto Public / Package.
func (u *Universe) Visibility(h universe.TypeHandle) universe.Visibility {
	if t, ok := asType(h); ok && t.obj.Exported() {
		return universe.Public
	}
	return universe.Package
}

// Walk visits every package-scope type name of the walked packages in name
// order.
func (u *Universe) Walk(ctx context.Context, fn func(universe.TypeHandle) error) error {
	for _, t := range u.candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// resolveSourceFile resolves a token position to a file path relative to moduleRoot.
func resolveSourceFile(fset *token.FileSet, pos token.Pos, moduleRoot string) string {
	if fset == nil || !pos.IsValid() {
		return ""
	}
	position := fset.Position(pos)
	if !position.IsValid() || position.Filename == "" {
		return ""
	}
	rel, err := filepath.Rel(moduleRoot, position.Filename)
	if err != nil {
		return position.Filename
	}
	return rel
}
