package store

import "io"

// Reader is an interface and never a candidate itself.
type Reader interface {
	Read(p []byte) (int, error)
}

// File implements io.Reader and io.Closer directly.
type File struct{}

func (File) Read(p []byte) (int, error) { return 0, nil }

func (File) Close() error { return nil }

// Alias is not a defined type.
type Alias = File

type file struct{}

func (f *file) Read(p []byte) (int, error) { return 0, nil }

// ReaderOnly satisfies io.Reader only through an embedded interface.
type ReaderOnly struct {
	io.Reader
}

// Box is generic and is skipped.
type Box[T any] struct {
	v T
}

func (b Box[T]) Read(p []byte) (int, error) { return 0, nil }
