package nn

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LabelEncoder maps class indices to the class names a model was trained on.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// LoadLabelEncoder reads an encoder from a JSON file of the form
// {"classes": ["CANDIDATE", ...]}.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var enc LabelEncoder
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode label encoder %s: %w", path, err)
	}
	if len(enc.Classes) == 0 {
		return nil, fmt.Errorf("label encoder %s has no classes", path)
	}
	return &enc, nil
}

// Decode returns the class name for an index.
func (e *LabelEncoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", i, len(e.Classes))
	}
	return e.Classes[i], nil
}

// Encode returns the index of a class name. Matching ignores surrounding
// space and case.
func (e *LabelEncoder) Encode(label string) (int, bool) {
	label = strings.TrimSpace(label)
	for i, c := range e.Classes {
		if strings.EqualFold(c, label) {
			return i, true
		}
	}
	return -1, false
}
