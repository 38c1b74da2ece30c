package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"gopkg.in/yaml.v3"
)

// ModelFile lists the models and MCP servers registered at startup.
type ModelFile struct {
	MCPServers []MCPServerSpec `yaml:"mcp_servers"`
	Models     []ModelSpec     `yaml:"models"`
}

type MCPServerSpec struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the env var holding the server's bearer key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the server's key from the environment.
func (s MCPServerSpec) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

type ModelSpec struct {
	ID        string             `yaml:"id"`
	Kind      domain.BackendKind `yaml:"kind"`
	APIKeyEnv string             `yaml:"api_key_env"`

	domain.ModelConfig `yaml:",inline"`
}

// Config returns the registration config with the API key resolved from
// APIKeyEnv when the file does not carry one inline.
func (s ModelSpec) Config() domain.ModelConfig {
	cfg := s.ModelConfig
	if cfg.APIKey == "" && s.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(s.APIKeyEnv)
	}
	return cfg
}

// DefaultModelFile registers the three in-house models the learning engine
// trains.
func DefaultModelFile() *ModelFile {
	inHouse := func(id, capability string) ModelSpec {
		return ModelSpec{
			ID:          id,
			Kind:        domain.BackendInHouse,
			ModelConfig: domain.ModelConfig{Provider: "aggregate", Capabilities: []string{capability}},
		}
	}
	return &ModelFile{
		Models: []ModelSpec{
			inHouse("resolution-time", domain.CapabilityResolutionTime),
			inHouse("csat", domain.CapabilityCSAT),
			inHouse("escalation-classifier", domain.CapabilityEscalation),
		},
	}
}

// LoadModelFile reads the YAML registration file at path. A missing file
// yields DefaultModelFile.
func LoadModelFile(path string) (*ModelFile, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultModelFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	var f ModelFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, err)
	}
	return &f, nil
}

func (f *ModelFile) validate() error {
	seen := make(map[string]bool, len(f.Models))
	for i := range f.Models {
		m := &f.Models[i]
		if m.ID == "" {
			return fmt.Errorf("models[%d]: id is required", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("models[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		if m.Kind == "" {
			m.Kind = domain.BackendInHouse
		}
		if !m.Kind.IsValid() {
			return fmt.Errorf("models[%d]: unknown kind %q", i, m.Kind)
		}
	}

	servers := make(map[string]bool, len(f.MCPServers))
	for i, s := range f.MCPServers {
		if s.Name == "" || s.Endpoint == "" {
			return fmt.Errorf("mcp_servers[%d]: name and endpoint are required", i)
		}
		if servers[s.Name] {
			return fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, s.Name)
		}
		servers[s.Name] = true
	}
	return nil
}
