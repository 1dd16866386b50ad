package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// EnvFiles lists the .env files merged into the process environment.
	EnvFiles []string
}

// Load resolves, reads, parses, and validates the runtime configuration.
// .env files beside the config and in the working directory are loaded first
// without overriding variables already set.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	envFiles, err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env")
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists:   false,
				EnvFiles: envFiles,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
		EnvFiles: envFiles,
	}, nil
}

// loadDotEnv merges each existing file into the environment. Earlier files
// win because godotenv.Load never overrides a variable that is already set.
func loadDotEnv(paths ...string) ([]string, error) {
	loaded := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return nil, fmt.Errorf("load env file %q: %w", abs, err)
		}
		loaded = append(loaded, abs)
	}
	return loaded, nil
}
