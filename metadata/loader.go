package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a metadata file
type File struct {
	// Service is applied to entities that do not name one
	Service  string              `yaml:"service"`
	Entities []*EntityDescriptor `yaml:"entities"`
}

// LoadFile reads and validates descriptors from a YAML file
func LoadFile(path string) ([]*EntityDescriptor, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid file path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates descriptors from YAML bytes
func Parse(data []byte) ([]*EntityDescriptor, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse metadata YAML: %w", err)
	}

	for _, d := range file.Entities {
		if d == nil {
			return nil, fmt.Errorf("metadata file contains an empty entity entry")
		}
		if d.Service == "" {
			d.Service = file.Service
		}
		if err := Validate(d); err != nil {
			return nil, err
		}
	}
	return file.Entities, nil
}

// LoadRegistry loads a metadata file straight into a new Registry
func LoadRegistry(path string) (*Registry, error) {
	descriptors, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(descriptors...)
}
