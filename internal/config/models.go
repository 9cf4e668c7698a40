package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoModels is returned when neither a model list nor an [llm] model is configured.
var ErrNoModels = errors.New("no LLM models configured")

// ModelEntry is one backend in the model list. Field names follow the
// OAI_CONFIG_LIST JSON format.
type ModelEntry struct {
	Model      string `json:"model"`
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	APIType    string `json:"api_type,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
}

// LoadModelList reads the model list from the environment variable named
// envOrFile, or from the file of that name when the variable is unset.
func LoadModelList(envOrFile string) ([]ModelEntry, error) {
	if envOrFile == "" {
		return nil, nil
	}
	raw := os.Getenv(envOrFile)
	source := "env " + envOrFile
	if raw == "" {
		data, err := os.ReadFile(envOrFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read model list: %w", err)
		}
		raw = string(data)
		source = envOrFile
	} else if !strings.HasPrefix(strings.TrimSpace(raw), "[") {
		// The variable may hold a path instead of JSON.
		data, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read model list %s: %w", raw, err)
		}
		source = raw
		raw = string(data)
	}

	var entries []ModelEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse model list from %s: %w", source, err)
	}
	for i, e := range entries {
		if e.Model == "" {
			return nil, fmt.Errorf("model list entry %d has no model", i)
		}
	}
	return entries, nil
}

// Models returns the model list, falling back to the single [llm] model.
func (c *Config) Models() ([]ModelEntry, error) {
	entries, err := LoadModelList(c.LLM.ConfigList)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if c.LLM.Model == "" {
		return nil, ErrNoModels
	}
	return []ModelEntry{{
		Model:   c.LLM.Model,
		APIKey:  c.LLM.GetAPIKey(),
		BaseURL: c.LLM.BaseURL,
		APIType: c.LLM.Provider,
	}}, nil
}
