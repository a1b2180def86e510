package core

import (
	"path/filepath"
	"strings"
)

// RepoConfig represents the structure of the optional .diffscope.yml file at
// the root of a reviewed repository.
type RepoConfig struct {
	// Extensions of files that should be reviewed. The leading dot is
	// optional. Example: [".go", "py", ".ts"]
	ReviewExts []string `yaml:"review_exts"`

	// Exclusion of entire directories by path prefix.
	// Example: ["vendor", "dist", "docs"]
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultRepoConfig returns a config with default values. The default
// extension list matches the file types the reviewer was originally tuned on.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		ReviewExts:  []string{".py", ".js", ".ts", ".tsx", ".jsx", ".vue", ".go", ".java", ".rb"},
		ExcludeDirs: []string{},
	}
}

// Reviewable reports whether a file path should be offered for review under
// this configuration.
func (c *RepoConfig) Reviewable(path string) bool {
	for _, dir := range c.ExcludeDirs {
		dir = strings.TrimSuffix(dir, "/")
		if dir != "" && (path == dir || strings.HasPrefix(path, dir+"/")) {
			return false
		}
	}

	if len(c.ReviewExts) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, allowed := range c.ReviewExts {
		if !strings.HasPrefix(allowed, ".") {
			allowed = "." + allowed
		}
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}
