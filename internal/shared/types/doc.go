// Package types provides the value types shared by every shell component.
//
// Core Types:
//   - AppDefinition: immutable catalog entry with AppFlags and DepFlags
//   - Role: compositing category derived from the flags
//   - Rect, Point, Size: screen geometry
//   - Event: value posted to the compositor loop
//   - Notification: outbound message toward UI overlays
//   - PressureLevel: memory pressure as seen by the governor
//
// Example Usage:
//
//	flags, unknown := types.ParseAppFlags([]string{"multi allow-geometry"})
//	def := &types.AppDefinition{Name: "Browser", Flags: flags}
package types
