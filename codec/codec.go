// Package codec centralizes how manifests and other metadata are
// encoded. Persisted formats record the codec name in their header, so
// a file written with one codec is always decoded with the same one.
package codec

import "fmt"

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written manifests. Existing files
// are self-describing and ignore this.
var Default Codec = GoJSON{}

// ByName resolves a codec from the stable name a file header carries.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	}
	return nil, false
}

// MustMarshal is a helper for internal tests and benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
