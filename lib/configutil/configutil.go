package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

func readJson5[T any](path string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a configuration file, `name` should come with a file extension.
// it will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	found, err := readJson5(name, &out)
	if err != nil {
		return out, err
	}

	prefix, ext := splitExt(name)
	localPath := fmt.Sprintf("%s.local.%s", prefix, ext)

	var override T
	foundLocal, err := readJson5(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Debug("merging config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it goes up the filesystem from the
// working directory until the root to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaultOut, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaultOut, os.ErrNotExist
		}
		current = parent
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
