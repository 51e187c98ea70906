package gotypes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/olehluchkiv/scopescan/internal/engine"
	"github.com/olehluchkiv/scopescan/internal/restriction"
	"github.com/olehluchkiv/scopescan/internal/scope"
	"github.com/olehluchkiv/scopescan/internal/signature"
	"github.com/olehluchkiv/scopescan/internal/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shopOnce sync.Once
	shop     *Universe
	shopErr  error
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// loadShop loads testdata/shop once; package loading shells out to go list.
func loadShop(t *testing.T) *Universe {
	t.Helper()
	shopOnce.Do(func() {
		dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "shop"))
		if err != nil {
			shopErr = err
			return
		}
		shop, shopErr = Load(context.Background(), dir, Options{}, testLogger())
	})
	require.NoError(t, shopErr)
	return shop
}

func resolve(t *testing.T, u *Universe, name string) universe.TypeHandle {
	t.Helper()
	h, err := u.Resolve(name)
	require.NoError(t, err)
	return h
}

const store = "example.com/shop/store."

func TestLoad(t *testing.T) {
	u := loadShop(t)
	assert.Equal(t, []string{"example.com/shop/api", "example.com/shop/store"}, u.RootPackages())

	var names []string
	require.NoError(t, u.Walk(context.Background(), func(h universe.TypeHandle) error {
		names = append(names, h.Name())
		return nil
	}))
	assert.Equal(t, u.Len(), len(names))
	assert.Contains(t, names, "example.com/shop/api.Sink")
	assert.Contains(t, names, store+"File")
	assert.Contains(t, names, store+"file")
	assert.NotContains(t, names, "net/http.Handler", "dependencies are not walked by default")
	assert.IsIncreasing(t, names)

	f := resolve(t, u, store+"File").(*Type)
	assert.Equal(t, filepath.Join("store", "files.go"), f.SourceFile())
}

func TestResolve(t *testing.T) {
	u := loadShop(t)

	h := resolve(t, u, "net/http.Handler")
	assert.Equal(t, "net/http.Handler", h.Name())
	assert.True(t, h == resolve(t, u, "net/http.Handler"), "handles are stable")
	assert.Equal(t, "error", resolve(t, u, "error").Name())

	for _, name := range []string{"database/sql/driver.Conn", "io.Nope", "nope"} {
		_, err := u.Resolve(name)
		assert.True(t, errors.Is(err, universe.ErrNotFound), name)
	}
}

func TestIsNormal(t *testing.T) {
	u := loadShop(t)
	tests := map[string]bool{
		store + "File":       true,
		store + "file":       true,
		store + "Box":        false,
		store + "Alias":      false,
		store + "Reader":     false,
		"net/http.Handler":   false,
		"error":              false,
		store + "ReaderOnly": true,
	}
	for name, want := range tests {
		assert.Equal(t, want, u.IsNormal(resolve(t, u, name)), name)
	}
}

func TestVisibility(t *testing.T) {
	u := loadShop(t)
	assert.Equal(t, universe.Public, u.Visibility(resolve(t, u, store+"File")))
	assert.Equal(t, universe.Package, u.Visibility(resolve(t, u, store+"file")))
}

func TestIsAssignable(t *testing.T) {
	u := loadShop(t)
	handler := resolve(t, u, "net/http.Handler")
	reader := resolve(t, u, "io.Reader")
	base := resolve(t, u, store+"Base")

	assert.True(t, u.IsAssignable(handler, resolve(t, u, store+"Handler")), "via pointer receiver")
	assert.True(t, u.IsAssignable(handler, resolve(t, u, store+"Wrapped")))
	assert.True(t, u.IsAssignable(reader, resolve(t, u, store+"ReaderOnly")))
	assert.True(t, u.IsAssignable(resolve(t, u, "error"), resolve(t, u, store+"Failure")))
	assert.False(t, u.IsAssignable(resolve(t, u, "error"), resolve(t, u, store+"NotError")))
	assert.True(t, u.IsAssignable(resolve(t, u, "example.com/shop/api.Sink"), resolve(t, u, store+"Emitter")))
	assert.True(t, u.IsAssignable(resolve(t, u, "example.com/shop/api.Sink"), resolve(t, u, store+"NamedEmitter")))

	assert.True(t, u.IsAssignable(base, base))
	assert.True(t, u.IsAssignable(base, resolve(t, u, store+"Derived")))
	assert.False(t, u.IsAssignable(base, resolve(t, u, store+"File")))
}

func TestLookupMethod(t *testing.T) {
	u := loadShop(t)
	serve := signature.New("ServeHTTP", "net/http.ResponseWriter", "*net/http.Request")

	t.Run("direct pointer receiver", func(t *testing.T) {
		h := resolve(t, u, store+"Handler")
		m, err := u.LookupMethod(h, serve)
		require.NoError(t, err)
		assert.Equal(t, h, m.Declaring)
		assert.False(t, m.Abstract)
	})

	t.Run("promoted from embedded struct", func(t *testing.T) {
		m, err := u.LookupMethod(resolve(t, u, store+"Wrapped"), serve)
		require.NoError(t, err)
		assert.Equal(t, store+"Handler", m.Declaring.Name())
	})

	t.Run("promoted from embedded interface is abstract", func(t *testing.T) {
		m, err := u.LookupMethod(resolve(t, u, store+"ReaderOnly"), signature.New("Read", "[]byte"))
		require.NoError(t, err)
		assert.True(t, m.Abstract)
		assert.Equal(t, "io.Reader", m.Declaring.Name())
	})

	t.Run("variadic", func(t *testing.T) {
		_, err := u.LookupMethod(resolve(t, u, store+"Logger"), signature.New("Logf", "string", "...int"))
		require.NoError(t, err)
	})

	t.Run("composite parameter types", func(t *testing.T) {
		sig, err := signature.Parse("Emit(map[string]int, func(int) error)")
		require.NoError(t, err)
		_, err = u.LookupMethod(resolve(t, u, store+"Emitter"), sig)
		require.NoError(t, err)
	})

	t.Run("parameter names inside func types are ignored", func(t *testing.T) {
		sig, err := signature.Parse("Emit(map[string]int, func(int) error)")
		require.NoError(t, err)
		m, err := u.LookupMethod(resolve(t, u, store+"NamedEmitter"), sig)
		require.NoError(t, err)
		assert.Equal(t, store+"NamedEmitter", m.Declaring.Name())
		assert.Equal(t, "Emit(map[string]int,func(int) error)", m.Signature.String())
	})

	t.Run("interface{} and any are the same type", func(t *testing.T) {
		for _, pattern := range []string{"Tag(string, any)", "Tag(string, interface{})"} {
			sig, err := signature.Parse(pattern)
			require.NoError(t, err)
			_, err = u.LookupMethod(resolve(t, u, store+"LegacyTagger"), sig)
			assert.NoError(t, err, pattern)
		}
	})

	t.Run("wrong parameters", func(t *testing.T) {
		_, err := u.LookupMethod(resolve(t, u, store+"NotError"), signature.New("Error"))
		assert.True(t, errors.Is(err, universe.ErrNoSuchMethod))
	})

	t.Run("field is not a method", func(t *testing.T) {
		_, err := u.LookupMethod(resolve(t, u, store+"Wrapped"), signature.New("Handler"))
		assert.True(t, errors.Is(err, universe.ErrNoSuchMethod))
	})
}

func matchNames(t *testing.T, u *Universe, def *scope.Definition, policy *restriction.Policy) []string {
	t.Helper()
	a, err := engine.New(def, u, policy, testLogger())
	require.NoError(t, err)
	results, _, err := engine.Run(context.Background(), u, []*engine.Analyzer{a}, engine.Options{Workers: 4})
	require.NoError(t, err)
	var out []string
	for _, e := range results[0].Entities.Entities() {
		out = append(out, e.String())
	}
	return out
}

func TestScopesOverGoPackages(t *testing.T) {
	u := loadShop(t)
	catalog, err := scope.DefaultCatalog()
	require.NoError(t, err)
	get := func(name string) *scope.Definition {
		d, ok := catalog.Get(name)
		require.True(t, ok, name)
		return d
	}

	tests := []struct {
		name   string
		def    *scope.Definition
		policy *restriction.Policy
		want   []string
	}{
		{
			name: "http handlers, inherited ServeHTTP skipped",
			def:  get("http"),
			want: []string{
				store + "Handler.ServeHTTP(net/http.ResponseWriter,*net/http.Request)",
				store + "Override.ServeHTTP(net/http.ResponseWriter,*net/http.Request)",
			},
		},
		{
			name: "io skips generic, alias and embedded interface",
			def:  get("io"),
			want: []string{
				store + "File.Close()",
				store + "File.Read([]byte)",
				store + "file.Read([]byte)",
			},
		},
		{
			name:   "io public only",
			def:    get("io"),
			policy: restriction.New(restriction.WithModifier(universe.Public)),
			want:   []string{store + "File.Close()", store + "File.Read([]byte)"},
		},
		{
			name:   "io with exclusion",
			def:    get("io"),
			policy: restriction.New(restriction.WithExclusions("example.com/*/store.File")),
			want:   []string{store + "file.Read([]byte)"},
		},
		{
			name: "error",
			def:  get("error"),
			want: []string{store + "Failure.Error()"},
		},
		{
			name: "embedded struct container",
			def:  scope.NewDefinition("describe").AddMethod(store+"Base", "Describe()"),
			want: []string{store + "Base.Describe()", store + "Special.Describe()"},
		},
		{
			name: "cross package interface",
			def:  scope.NewDefinition("sink").AddMethod("example.com/shop/api.Sink", "Emit(map[string]int, func(int) error)"),
			want: []string{
				store + "Emitter.Emit(map[string]int,func(int) error)",
				store + "NamedEmitter.Emit(map[string]int,func(int) error)",
			},
		},
		{
			name: "empty interface parameter",
			def:  scope.NewDefinition("tagger").AddMethod("example.com/shop/api.Tagger", "Tag(string, any)"),
			want: []string{store + "LegacyTagger.Tag(string,any)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchNames(t, u, tt.def, tt.policy))
		})
	}
}

func TestScopeOutsideImportGraphFails(t *testing.T) {
	u := loadShop(t)
	catalog, err := scope.DefaultCatalog()
	require.NoError(t, err)
	def, _ := catalog.Get("sql-driver")

	_, err = engine.New(def, u, nil, testLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrResolution))
	assert.True(t, errors.Is(err, universe.ErrNotFound))
	assert.Contains(t, err.Error(), "database/sql/driver.Driver")
}
