package fingerprint

import "encoding/json"

// Config computes a fingerprint over the canonical serialization of v: JSON
// with map keys sorted (Go's encoding/json sorts map[string]any keys by
// construction) and no incidental whitespace. Round-tripping through
// map[string]any/[]any before the final marshal normalizes field order
// regardless of how v's Go struct fields were declared.
func Config(v any) (Hex, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Empty, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Empty, err
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return Empty, err
	}
	return Bytes(canonical), nil
}
