package api

// Sink receives batches of counters.
type Sink interface {
	Emit(counts map[string]int, flush func(int) error) error
}

// Tagger attaches arbitrary values.
type Tagger interface {
	Tag(key string, v any) error
}
