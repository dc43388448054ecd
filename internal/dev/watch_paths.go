package dev

import (
	"path/filepath"

	"github.com/vango-dev/devd/internal/config"
)

// CollectWatchPatterns returns the de-duplicated watch patterns for the
// project. Relative patterns stay relative to the project root; absolute
// patterns are cleaned.
func CollectWatchPatterns(cfg *config.Config, extra ...string) []string {
	patterns := make([]string, 0, len(cfg.WatchPatterns)+len(extra))
	patterns = append(patterns, cfg.WatchPatterns...)
	patterns = append(patterns, extra...)

	unique := make([]string, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		clean := filepath.ToSlash(pattern)
		if filepath.IsAbs(pattern) {
			clean = filepath.Clean(pattern)
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}
