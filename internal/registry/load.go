package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Declaration source formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Load reads declarations from a JSON or YAML file (chosen by extension) and builds a
// registry with no implementations bound.
func Load(path string) (*Registry, error) {
	decls, err := readDeclarations(path)
	if err != nil {
		return nil, err
	}
	return build(path, decls)
}

// LoadGlob loads every file matching pattern (doublestar syntax, e.g. "functions/**/*.json")
// into one registry. Files are read in lexical order.
func LoadGlob(pattern string) (*Registry, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, &ConfigError{Source: pattern, Index: -1, Err: err}
	}
	if len(matches) == 0 {
		return nil, &ConfigError{Source: pattern, Index: -1, Err: errors.New("no declaration files match")}
	}
	sort.Strings(matches)
	var all []Declaration
	for _, m := range matches {
		decls, err := readDeclarations(m)
		if err != nil {
			return nil, err
		}
		all = append(all, decls...)
	}
	return build(pattern, all)
}

// Parse builds a registry from an in-memory declaration document.
func Parse(data []byte, format string) (*Registry, error) {
	decls, err := decodeDeclarations("", data, format)
	if err != nil {
		return nil, err
	}
	return build("", decls)
}

// FormatForPath picks the declaration format from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func readDeclarations(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Index: -1, Err: err}
	}
	return decodeDeclarations(path, data, FormatForPath(path))
}

func decodeDeclarations(source string, data []byte, format string) ([]Declaration, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{Source: source, Index: -1, Err: errors.New("empty declaration source")}
	}
	var decls []Declaration
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &decls); err != nil {
			return nil, &ConfigError{Source: source, Index: -1, Err: err}
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&decls); err != nil {
			return nil, &ConfigError{Source: source, Index: -1, Err: err}
		}
	default:
		return nil, &ConfigError{Source: source, Index: -1, Err: fmt.Errorf("unknown format %q", format)}
	}
	return decls, nil
}
