package trackio

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// AnnotationMap is a 1-based annotation index to BED-path mapping, up
// to 32 entries (one per usable bit in Observation.Annotations) (§6).
type AnnotationMap map[int]string

// ReadAnnotationJSON parses the annotation JSON: a mapping from
// 1-based index string to BED path.
func ReadAnnotationJSON(r io.Reader) (AnnotationMap, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("trackio: decoding annotation JSON: %w", err)
	}
	out := make(AnnotationMap, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("trackio: annotation JSON key %q is not an integer index: %w", k, err)
		}
		if idx < 1 || idx > 32 {
			return nil, fmt.Errorf("trackio: annotation JSON index %d out of range [1,32]", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// BitFor returns the 0-based bit position for a 1-based annotation index.
func BitFor(index1Based int) int { return index1Based - 1 }
