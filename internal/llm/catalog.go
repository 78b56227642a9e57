package llm

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Mode is one client-selectable assistant configuration.
type Mode struct {
	ID        string `yaml:"id"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Reasoning bool   `yaml:"reasoning"`
	Tools     bool   `yaml:"tools"`
}

// Catalog maps mode ids to model configurations. Loaded once at startup
// from the embedded catalog; read-only afterwards.
type Catalog struct {
	modes      map[string]Mode
	defaultID  string
	titleModel string
}

type catalogFile struct {
	Default    string `yaml:"default"`
	TitleModel string `yaml:"title_model"`
	Modes      []Mode `yaml:"modes"`
}

// LoadCatalog parses the embedded mode catalog.
func LoadCatalog() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return nil, fmt.Errorf("parse mode catalog: %w", err)
	}
	if len(file.Modes) == 0 {
		return nil, fmt.Errorf("mode catalog is empty")
	}

	modes := make(map[string]Mode, len(file.Modes))
	for _, m := range file.Modes {
		if m.ID == "" || m.Model == "" {
			return nil, fmt.Errorf("mode catalog entry missing id or model")
		}
		modes[m.ID] = m
	}

	if _, ok := modes[file.Default]; !ok {
		return nil, fmt.Errorf("default mode %q not in catalog", file.Default)
	}

	return &Catalog{
		modes:      modes,
		defaultID:  file.Default,
		titleModel: file.TitleModel,
	}, nil
}

// Resolve returns the mode for id. Unknown or empty ids fall back to the
// default mode rather than failing the turn.
func (c *Catalog) Resolve(id string) Mode {
	if m, ok := c.modes[id]; ok {
		return m
	}
	return c.modes[c.defaultID]
}

// TitleModel returns the model used for conversation title generation.
func (c *Catalog) TitleModel() string {
	return c.titleModel
}
