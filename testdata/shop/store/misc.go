package store

// Base declares Describe; Derived inherits it, Special overrides it.
type Base struct{}

func (Base) Describe() string { return "base" }

type Derived struct {
	Base
}

type Special struct {
	Base
}

func (Special) Describe() string { return "special" }

// Failure implements error.
type Failure struct{}

func (Failure) Error() string { return "failure" }

// NotError has an Error method with the wrong parameters.
type NotError struct{}

func (NotError) Error(code int) string { return "" }

// Logger has a variadic method.
type Logger struct{}

func (Logger) Logf(format string, args ...int) {}

// Emitter implements api.Sink.
type Emitter struct{}

func (*Emitter) Emit(counts map[string]int, flush func(int) error) error { return nil }

// NamedEmitter implements api.Sink with a named parameter in the callback type.
type NamedEmitter struct{}

func (NamedEmitter) Emit(counts map[string]int, flush func(n int) error) (err error) { return nil }

// LegacyTagger implements api.Tagger spelling the value as interface{}.
type LegacyTagger struct{}

func (LegacyTagger) Tag(key string, v interface{}) error { return nil }
