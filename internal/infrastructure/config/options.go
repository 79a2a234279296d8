package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// AnimOptions describes one direction of the view animation
type AnimOptions struct {
	DurationMS int  `yaml:"duration-ms" json:"duration_ms"`
	Opacity    bool `yaml:"opacity" json:"opacity"`
	Zoom       bool `yaml:"zoom" json:"zoom"`
}

// Options are the compositor options that may change while the shell runs.
// They are read from the options file and from the control API.
type Options struct {
	Animations  bool        `yaml:"animations" json:"animations"`
	Showing     AnimOptions `yaml:"showing" json:"showing"`
	Hiding      AnimOptions `yaml:"hiding" json:"hiding"`
	SlideMS     int         `yaml:"slide-ms" json:"slide_ms"`
	SyncGraceMS int         `yaml:"sync-grace-ms" json:"sync_grace_ms"`
}

// Options returns the startup options derived from the environment
func (a AnimationConfig) Options() Options {
	return Options{
		Animations: a.Enabled,
		Showing: AnimOptions{
			DurationMS: int(a.ShowDuration.Milliseconds()),
			Opacity:    a.Opacity,
			Zoom:       a.Zoom,
		},
		Hiding: AnimOptions{
			DurationMS: int(a.HideDuration.Milliseconds()),
			Opacity:    a.Opacity,
			Zoom:       a.Zoom,
		},
		SlideMS:     int(a.SlideDuration.Milliseconds()),
		SyncGraceMS: int(a.SyncGrace.Milliseconds()),
	}
}

// Validate rejects negative durations
func (o Options) Validate() error {
	for name, ms := range map[string]int{
		"showing.duration-ms": o.Showing.DurationMS,
		"hiding.duration-ms":  o.Hiding.DurationMS,
		"slide-ms":            o.SlideMS,
		"sync-grace-ms":       o.SyncGraceMS,
	} {
		if ms < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, ms)
		}
	}
	return nil
}

// ParseOptions decodes a YAML options document over base. Keys missing from
// data keep their base value.
func ParseOptions(data []byte, base Options) (Options, error) {
	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return base, fmt.Errorf("parse options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return base, err
	}
	return opts, nil
}

// LoadOptions reads the options file at path over base
func LoadOptions(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read options file: %w", err)
	}
	return ParseOptions(data, base)
}

// MarshalOptions encodes opts as a YAML document
func MarshalOptions(opts Options) ([]byte, error) {
	return yaml.Marshal(opts)
}
