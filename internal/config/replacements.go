package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// LoadReplacements reads the name substitution table: a flat JSON object
// mapping a normalised history-side name to its catalog spelling.
func LoadReplacements(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading replacements file: %w", err)
	}

	replacements := make(map[string]string)
	if err := json.Unmarshal(data, &replacements); err != nil {
		return nil, fmt.Errorf("parsing replacements file %s: %w", path, err)
	}
	return replacements, nil
}
