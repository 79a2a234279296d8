// Package paths holds the shell's filesystem layout and pid file handling.
package paths
