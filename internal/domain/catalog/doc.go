// Package catalog loads the immutable table of application definitions.
//
// Descriptors are read once at startup from every file under the apps
// directory matching a doublestar pattern. The encoding is picked by file
// extension:
//   - .appdef, .toml: TOML
//   - .yaml, .yml: YAML
//   - .json: JSON
//
// A descriptor that fails to parse, has no name, or whose executable cannot
// be resolved is dropped with a warning. Nothing is fatal for the whole load.
//
// Example descriptor:
//
//	name     = "Browser"
//	category = "web"
//	version  = 2
//	icon     = "@DATADIR:browser.png"
//	exec     = "$APP_BIN$browser"
//	args     = "--fullscreen"
//	flags    = ["multi", "uses-back"]
//	deps     = ["touch", "network"]
package catalog
