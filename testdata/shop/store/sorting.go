package store

import "sort"

// ByName sorts names in place.
type ByName []string

func (b ByName) Len() int           { return len(b) }
func (b ByName) Less(i, j int) bool { return b[i] < b[j] }
func (b ByName) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

var _ sort.Interface = ByName(nil)
