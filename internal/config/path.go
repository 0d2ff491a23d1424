package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "murmur"

// Path returns the default config file location,
// $XDG_CONFIG_HOME/murmur/config.json.
func Path() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, appDir, "config.json"), nil
}

// ModelPath resolves a model name to its file under the data directory.
// A value containing a path separator or the .bin suffix is treated as an
// explicit path and returned after tilde expansion.
func ModelPath(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasSuffix(model, ".bin") {
		return expandHome(model)
	}

	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, appDir, "models", "ggml-"+model+".bin"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
