package catalog

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pelletier/go-toml/v2"
)

// descriptor is the on-disk form of an application definition
type descriptor struct {
	Name     string   `toml:"name" yaml:"name" json:"name"`
	Author   string   `toml:"author" yaml:"author" json:"author"`
	Licence  string   `toml:"licence" yaml:"licence" json:"licence"`
	Category string   `toml:"category" yaml:"category" json:"category"`
	Version  int      `toml:"version" yaml:"version" json:"version"`
	Icon     string   `toml:"icon" yaml:"icon" json:"icon"`
	Exec     string   `toml:"exec" yaml:"exec" json:"exec"`
	Args     string   `toml:"args" yaml:"args" json:"args"`
	Flags    []string `toml:"flags" yaml:"flags" json:"flags"`
	Deps     []string `toml:"deps" yaml:"deps" json:"deps"`
}

// decodeDescriptor parses data according to the extension of path
func decodeDescriptor(path string, data []byte) (*descriptor, error) {
	var d descriptor
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".appdef", ".toml":
		err = toml.Unmarshal(data, &d)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	case ".json":
		err = sonic.Unmarshal(data, &d)
	default:
		return nil, fmt.Errorf("unsupported descriptor extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return &d, nil
}

var textPolicy = bluemonday.StrictPolicy()

// sanitize strips markup from free text fields. Notifications carry these
// strings to overlays that may render them as rich text.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func (d *descriptor) clean() {
	d.Name = sanitize(d.Name)
	d.Author = sanitize(d.Author)
	d.Licence = sanitize(d.Licence)
	d.Category = sanitize(d.Category)
	d.Exec = strings.TrimSpace(d.Exec)
	if d.Category == "" {
		d.Category = "default"
	}
}
