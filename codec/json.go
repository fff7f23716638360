package codec

import "encoding/json"

// JSON is the standard-library codec. It is the dependency-free fallback
// and the reference behavior the other JSON codecs must match; manifests
// written with either decode with both.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns "json", the tag written into file headers.
func (JSON) Name() string { return "json" }
