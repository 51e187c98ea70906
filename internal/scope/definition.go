package scope

// Definition is a named scope: a mapping from container names (fully
// qualified type names) to method patterns of the form name(T1,T2).
//
// A Definition is populated once through AddMethod and read afterwards.
// Containers and their patterns keep insertion order.
type Definition struct {
	name       string
	containers []string
	methods    map[string][]string
}

// NewDefinition returns an empty definition called name.
func NewDefinition(name string) *Definition {
	return &Definition{name: name}
}

// Name returns the scope name.
func (d *Definition) Name() string { return d.name }

// AddMethod appends pattern to the list of containerName, creating the list
// on first use.
func (d *Definition) AddMethod(containerName, pattern string) *Definition {
	if d.methods == nil {
		d.methods = make(map[string][]string)
	}
	if _, ok := d.methods[containerName]; !ok {
		d.containers = append(d.containers, containerName)
	}
	d.methods[containerName] = append(d.methods[containerName], pattern)
	return d
}

// MethodsToMatch returns a copy of the container to patterns mapping. It is
// never nil.
func (d *Definition) MethodsToMatch() map[string][]string {
	out := make(map[string][]string, len(d.methods))
	for c, ms := range d.methods {
		out[c] = append([]string(nil), ms...)
	}
	return out
}

// Containers returns container names in the order they were first added.
func (d *Definition) Containers() []string {
	return append([]string(nil), d.containers...)
}

// Methods returns the patterns declared for containerName.
func (d *Definition) Methods(containerName string) []string {
	return append([]string(nil), d.methods[containerName]...)
}

// Len returns the total number of declared patterns.
func (d *Definition) Len() int {
	n := 0
	for _, ms := range d.methods {
		n += len(ms)
	}
	return n
}
