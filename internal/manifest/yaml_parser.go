package manifest

import (
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

// YAMLParser parses manifests with a full YAML implementation.
type YAMLParser struct{}

// NewYAMLParser returns a standards-compliant manifest parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

type yamlManifest struct {
	DublinCore struct {
		Identifier string `yaml:"identifier"`
	} `yaml:"dublin_core"`
	Projects []Project `yaml:"projects"`
}

// Parse implements Parser.
func (p *YAMLParser) Parse(data []byte) (Manifest, error) {
	var doc yamlManifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Manifest{}, &errors.ParseError{Format: "manifest", Message: err.Error(), Err: errors.ErrInvalidInput}
	}

	m := Manifest{Identifier: doc.DublinCore.Identifier}
	for _, proj := range doc.Projects {
		proj.Path = cleanPath(proj.Path)
		if proj.Identifier == "" && proj.Path == "" {
			continue
		}
		m.Projects = append(m.Projects, proj)
	}
	return m, nil
}
