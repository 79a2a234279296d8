// Command shell is the application shell and window compositor for
// embedded Linux devices.
//
// It loads application descriptors, starts and supervises applications,
// composites their windows through the window-system bridge at /wm, streams
// notifications to UI overlays at /events and serves a control API under
// /api.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//   - An optional YAML options file for animations, reloaded on change
//
// Usage:
//
//	shell --apps /usr/share/shell/apps
//	shell --dev --log-level debug
//	shell apps -f yaml
//
// Signals:
//   - SIGINT, SIGTERM: stop every application and exit
package main
