package importer

import (
	"slices"
	"strings"
)

// Registry holds named statement formats.
type Registry struct {
	formats map[string]Format
	order   []string
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// Register adds a format. Panics on a duplicate or invalid format.
func (r *Registry) Register(f Format) {
	key := strings.ToLower(f.Name)
	if f.Generic() {
		panic("format name is reserved: " + key)
	}
	if _, ok := r.formats[key]; ok {
		panic("duplicate format: " + key)
	}
	if err := f.validate(); err != nil {
		panic(err.Error())
	}
	r.formats[key] = f
	r.order = append(r.order, key)
}

// Has reports whether a format with this name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.formats[strings.ToLower(name)]
	return ok
}

// Get returns the format registered under name.
func (r *Registry) Get(name string) (Format, bool) {
	f, ok := r.formats[strings.ToLower(name)]
	return f, ok
}

// Formats returns all formats in registration order.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.formats[key])
	}
	return out
}

// Match returns every format whose signature equals the header tokens.
func (r *Registry) Match(header []string, delim rune) []Format {
	tokens := normalizeHeader(header)
	var matches []Format
	for _, key := range r.order {
		f := r.formats[key]
		if f.Delimiter != delim {
			continue
		}
		if slices.Equal(normalizeHeader(f.Signature), tokens) {
			matches = append(matches, f)
		}
	}
	return matches
}

// DefaultRegistry returns a registry with all built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range builtinFormats() {
		r.Register(f)
	}
	return r
}

// normalizeHeader lower-cases and trims tokens and drops trailing empty ones.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = normalizeToken(h)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
