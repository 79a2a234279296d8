// Package config loads shell configuration from the environment with
// envconfig and the runtime options document from YAML.
package config
