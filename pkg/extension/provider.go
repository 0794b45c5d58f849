package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Candidate is one discoverable source. A non-nil Err marks a candidate
// that was found but could not be read.
type Candidate struct {
	ID      string
	Options map[string]interface{}
	Err     error
}

// SourceProvider enumerates candidate extensions.
type SourceProvider interface {
	Candidates(dir string) ([]Candidate, error)
}

// Manifest is the optional per-extension file in the extensions directory.
// Its name (without extension) is the source id.
type Manifest struct {
	Options map[string]interface{} `yaml:"options"`
}

// DirProvider lists <id>.yaml manifests in a directory.
type DirProvider struct{}

func (DirProvider) Candidates(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if strings.HasPrefix(id, "__") || strings.HasPrefix(id, ".") {
			continue
		}

		manifest, err := readManifest(filepath.Join(dir, name))
		candidates = append(candidates, Candidate{
			ID:      id,
			Options: manifest.Options,
			Err:     err,
		})
	}
	return candidates, nil
}

func readManifest(path string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, err
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("invalid manifest YAML: %w", err)
	}
	return manifest, nil
}

// StaticProvider offers a fixed list of ids, used when no extensions
// directory is configured.
type StaticProvider struct {
	IDs []string
}

func (p StaticProvider) Candidates(string) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(p.IDs))
	for _, id := range p.IDs {
		candidates = append(candidates, Candidate{ID: id})
	}
	return candidates, nil
}
