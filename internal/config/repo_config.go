package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/diffscope/diffscope/internal/core"
)

// ErrRepoConfigParsing is returned when a repository ships a .diffscope.yml
// that cannot be parsed.
var ErrRepoConfigParsing = errors.New("repo config parsing failed")

// RepoConfigPath is where a repository can override review settings.
const RepoConfigPath = ".diffscope.yml"

// ParseRepoConfig parses the raw contents of a .diffscope.yml file. Fields
// absent from the file keep their defaults.
func ParseRepoConfig(data []byte) (*core.RepoConfig, error) {
	cfg := core.DefaultRepoConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoConfigParsing, err)
	}
	return cfg, nil
}
