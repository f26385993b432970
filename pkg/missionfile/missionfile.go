// Package missionfile loads missions authored as JSON or YAML files.
package missionfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/nova-hud/nova/pkg/models"
)

// Pattern matches every mission file below a directory.
const Pattern = "**/*.{json,yaml,yml}"

var ErrUnsupportedFormat = errors.New("unsupported mission file format")

// Decode parses a mission document. The format is taken from the extension
// of name.
func Decode(name string, data []byte) (*models.Mission, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}

		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", name, err)
		}

		data = converted
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	var mission models.Mission
	if err := json.Unmarshal(data, &mission); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	return &mission, nil
}

// Encode renders a mission in the format named by ext (".json", ".yaml" or ".yml").
func Encode(mission *models.Mission, ext string) ([]byte, error) {
	data, err := json.MarshalIndent(mission, "", "  ")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(ext) {
	case ".json":
		return data, nil
	case ".yaml", ".yml":
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}

		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// LoadFile reads one mission file.
func LoadFile(path string) (*models.Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file %s: %w", path, err)
	}

	return Decode(path, data)
}

// LoadDir reads every file below root matching Pattern, in path order. A
// file that fails to load fails the whole call.
func LoadDir(root string) ([]*models.Mission, error) {
	paths, err := Paths(root)
	if err != nil {
		return nil, err
	}

	missions := make([]*models.Mission, 0, len(paths))

	for _, path := range paths {
		mission, err := LoadFile(path)
		if err != nil {
			return nil, err
		}

		missions = append(missions, mission)
	}

	return missions, nil
}

// Paths lists the mission files below root.
func Paths(root string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list mission files in %s: %w", root, err)
	}

	slices.Sort(matches)

	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(match)))
	}

	return paths, nil
}

// Matches reports whether rel, a slash separated path relative to the
// mission root, names a mission file.
func Matches(rel string) bool {
	ok, err := doublestar.Match(Pattern, filepath.ToSlash(rel))

	return err == nil && ok
}
