package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raterudder/citysim/pkg/types"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a scenario document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported scenario file extension: %q", filepath.Ext(path))
}

// Load reads a scenario from a JSON or YAML file.
func Load(path string) (types.Scenario, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return types.Scenario{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()
	sc, err := Decode(f, format)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return sc, nil
}

// Decode parses a scenario. Unknown fields are rejected so typos in device
// parameters do not silently fall back to defaults.
func Decode(r io.Reader, format Format) (types.Scenario, error) {
	var sc types.Scenario
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return sc, fmt.Errorf("failed to decode json scenario: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&sc); err != nil {
			return sc, fmt.Errorf("failed to decode yaml scenario: %w", err)
		}
	default:
		return sc, fmt.Errorf("unknown scenario format: %q", format)
	}
	return sc, nil
}

// Parse decodes a scenario held in memory.
func Parse(data []byte, format Format) (types.Scenario, error) {
	return Decode(bytes.NewReader(data), format)
}
