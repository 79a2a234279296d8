// Package compositor decides which application is on screen.
//
// A Compositor tracks the foreground and previous instances, the launcher,
// switcher and on-screen keyboard overlays, and one View per instance whose
// opacity, zoom and position are animated by a transition.Engine. It is
// driven exclusively from a Loop goroutine; producers post events with
// Loop.Post and API handlers run closures through Loop.Call.
//
// Handling one event may queue follow-up events, each touching one part of
// the visual state: the view, the thumbnail or the switcher membership.
package compositor
