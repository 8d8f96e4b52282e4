package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
)

// DefaultTopic is used when a document does not name one.
const DefaultTopic = "default"

// Document is one pipeline configuration file.
type Document struct {
	Topic  string      `yaml:"topic"`
	Seed   *int64      `yaml:"seed"`
	Only   []string    `yaml:"only"`
	Paths  layout.Dirs `yaml:"paths"`
	Stages []StageSpec `yaml:"stages"`
}

// StageSpec is one stage descriptor: a registered name plus the remaining
// keys as stage-specific parameters.
type StageSpec struct {
	Name   string
	params yaml.Node
}

// UnmarshalYAML splits the "name" key from the parameter mapping.
func (s *StageSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: stage descriptor must be a mapping", node.Line)
	}
	params := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: node.Line, Column: node.Column}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "name" {
			if err := val.Decode(&s.Name); err != nil {
				return fmt.Errorf("line %d: stage name: %w", val.Line, err)
			}
			continue
		}
		params.Content = append(params.Content, key, val)
	}
	if s.Name == "" {
		return fmt.Errorf("line %d: stage descriptor has no name", node.Line)
	}
	s.params = params
	return nil
}

// NewStageSpec builds a descriptor programmatically; params may be nil.
func NewStageSpec(name string, params map[string]any) (StageSpec, error) {
	spec := StageSpec{Name: name, params: yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
	if len(params) == 0 {
		return spec, nil
	}
	if err := spec.params.Encode(params); err != nil {
		return StageSpec{}, fmt.Errorf("encode params for %s: %w", name, err)
	}
	return spec, nil
}

// HasParams reports whether any parameter keys were given.
func (s StageSpec) HasParams() bool {
	return len(s.params.Content) > 0
}

// Decode fills v from the stage parameters, rejecting unknown keys.
func (s StageSpec) Decode(v any) error {
	if !s.HasParams() {
		return nil
	}
	raw, err := yaml.Marshal(&s.params)
	if err != nil {
		return fmt.Errorf("%w: stage %s: %v", internalerr.ErrInvalidConfig, s.Name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: stage %s: %v", internalerr.ErrInvalidConfig, s.Name, err)
	}
	return nil
}

// Parse decodes a pipeline document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", internalerr.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if doc.Topic == "" {
		doc.Topic = DefaultTopic
	}
	if len(doc.Stages) == 0 {
		return nil, fmt.Errorf("%w: no stages declared", internalerr.ErrInvalidConfig)
	}
	return &doc, nil
}

// Load reads a pipeline document from a YAML file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
