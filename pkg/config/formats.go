package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ConfigFormat interface {
	Name() string
	Extension() []string
	Unmarshal(data []byte) (Document, error)
	Marshal(doc Document) ([]byte, error)
}

type YAMLFormat struct{}

func (f *YAMLFormat) Name() string { return "yaml" }

func (f *YAMLFormat) Extension() []string { return []string{".yaml", ".yml"} }

func (f *YAMLFormat) Unmarshal(data []byte) (Document, error) {
	doc := make(Document)
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return doc, nil
}

func (f *YAMLFormat) Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

type JSONFormat struct{}

func (f *JSONFormat) Name() string { return "json" }

func (f *JSONFormat) Extension() []string { return []string{".json"} }

func (f *JSONFormat) Unmarshal(data []byte) (Document, error) {
	doc := make(Document)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return doc, nil
}

func (f *JSONFormat) Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", " ")
}

var formats = []ConfigFormat{&YAMLFormat{}, &JSONFormat{}}

// FormatFor picks a format by file extension; YAML is the default.
func FormatFor(path string) ConfigFormat {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		for _, e := range f.Extension() {
			if e == ext {
				return f
			}
		}
	}
	return &YAMLFormat{}
}
