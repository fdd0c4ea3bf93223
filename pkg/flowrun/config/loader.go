package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, format, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	if format == formatYAML {
		return FromYAML(data)
	}
	return FromJSON(data)
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// LoadGraphFile reads a graph definition from a .yaml, .yml or .json file.
// The id is optional; a graph without one is meant for Engine.CreateGraph.
func LoadGraphFile(path string) (*flowrun.Graph, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if format == formatYAML {
		return ParseGraphYAML(data)
	}
	return ParseGraphJSON(data)
}

// ParseGraphYAML decodes a YAML graph definition.
func ParseGraphYAML(data []byte) (*flowrun.Graph, error) {
	var g flowrun.Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph yaml: %w", err)
	}
	return finishGraph(&g)
}

// ParseGraphJSON decodes a JSON graph definition.
func ParseGraphJSON(data []byte) (*flowrun.Graph, error) {
	var g flowrun.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph json: %w", err)
	}
	return finishGraph(&g)
}

func finishGraph(g *flowrun.Graph) (*flowrun.Graph, error) {
	if err := g.Spec().Validate(); err != nil {
		return nil, err
	}
	if g.Nodes == nil {
		g.Nodes = map[string]any{}
	}
	if g.Edges == nil {
		g.Edges = map[string]flowrun.Edge{}
	}
	return g, nil
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

func readFile(path string) ([]byte, fileFormat, error) {
	var format fileFormat
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		format = formatYAML
	case ".json":
		format = formatJSON
	default:
		return nil, 0, fmt.Errorf("unsupported config file extension: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read config file: %w", err)
	}
	return data, format, nil
}
